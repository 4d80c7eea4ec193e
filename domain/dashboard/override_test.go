package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOverridesReplacesGenericValue(t *testing.T) {
	records := []Record{
		{Queue: "General Index", DocumentID: "a"},
		{Queue: "General Index", DocumentID: "b"},
		{Queue: "General Index", DocumentID: "b"},
		{Queue: "Index Queue", DocumentID: "z"},
	}
	tbl := NewTable("t", "t", ColQueueName, []string{ColPRO})
	tbl.SetColumn(ColPRO, Aggregate(records, DefaultQCSuffix).Primary)
	tbl.AddRow("Index Queue").SetInt(ColPRO, 1)
	tbl.AddRow("RMA").SetInt(ColPRO, 5)

	applied := ApplyOverrides(tbl, records, DefaultOverrides, ColPRO)

	assert.Equal(t, []string{"RMA", "Index Queue"}, applied)
	r, _ := tbl.Row("Index Queue")
	assert.Equal(t, 2, r.Int(ColPRO))
	r, _ = tbl.Row("RMA")
	assert.Equal(t, 0, r.Int(ColPRO))

	again := ApplyOverrides(tbl, records, DefaultOverrides, ColPRO)
	assert.Equal(t, applied, again)
	r, _ = tbl.Row("Index Queue")
	assert.Equal(t, 2, r.Int(ColPRO))
}
