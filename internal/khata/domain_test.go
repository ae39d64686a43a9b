package khata

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionJSONWritesNumbers(t *testing.T) {
	sess := sampleSession(t)
	raw, err := json.Marshal(sess)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"grandTotal":130`)
	assert.Contains(t, body, `"remaining":130`)
	assert.Contains(t, body, `"quantity":2`)
	assert.Contains(t, body, `"price":50`)
	assert.Contains(t, body, `"total":100`)
	assert.Contains(t, body, `"customerName":"Ali"`)
	assert.Contains(t, body, `"owner":"owner"`)
	assert.False(t, decimal.MarshalJSONWithoutQuotes, "package default must stay untouched")

	var back Session
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.GrandTotal.Equal(sess.GrandTotal))
	require.Len(t, back.Items, 2)
	assert.True(t, back.Items[0].Total.Equal(d("100")))
}

func TestSessionJSONEmptyItems(t *testing.T) {
	raw, err := json.Marshal(Session{ID: "s1"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"items":[]`)
	assert.Contains(t, string(raw), `"grandTotal":0`)
}

func TestLineItemJSONKeepsScale(t *testing.T) {
	raw, err := json.Marshal(LineItem{Name: "Tea", Quantity: d("0.25"), UnitPrice: d("12.50"), Total: d("3.125")})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"quantity":0.25`)
	assert.Contains(t, string(raw), `"price":12.5`)
	assert.Contains(t, string(raw), `"total":3.125`)
}
