package main

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportChangeReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.xlsx")
	changes := []grainChange{
		{
			id:          int64(1),
			grainType:   "Wheat",
			source:      sourcePayload,
			description: sql.NullString{String: wheatPayloadDescription, Valid: true},
			rate:        rateOf(1910),
			quantity:    rateOf(4.5),
		},
		{
			id:        int64(3),
			grainType: "Wheat",
			source:    sourceRate,
			rate:      rateOf(1910),
		},
	}

	require.NoError(t, exportChangeReport(path, changes))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{exportSheetName}, f.GetSheetList())

	rows, err := f.GetRows(exportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, []string{"1", "Wheat", "payload", "1910", "4.5", wheatPayloadDescription}, rows[1])

	for cell, want := range map[string]string{"A3": "3", "C3": "rate", "D3": "1910", "E3": "", "F3": ""} {
		got, err := f.GetCellValue(exportSheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestExportDecimal(t *testing.T) {
	assert.Equal(t, "", exportDecimal(decimal.NullDecimal{}))
	assert.Equal(t, 1800.25, exportDecimal(rateOf(1800.25)))
}
