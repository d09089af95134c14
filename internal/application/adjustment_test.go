package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/application"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

func TestAdjustmentResource_Columns(t *testing.T) {
	res := application.NewAdjustmentResource(newMockAccurate())

	assert.Equal(t, model.ResourceItemAdjustment, res.Type())
	assert.Equal(t, []string{
		"id", "number", "transDate", "itemNo", "itemName", "adjustmentType",
		"quantity", "unitCode", "unitCost", "warehouse", "description",
	}, res.Columns())

	cols := res.Columns()
	cols[0] = "mutated"
	assert.Equal(t, "id", res.Columns()[0], "callers get a copy")
}

func TestAdjustmentImporter_Prepare(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	tooLate := time.Now().AddDate(0, 0, 400).Format("2006-01-02")

	tests := []struct {
		name      string
		mutate    func(model.Record)
		wantField string // empty when the row is valid
	}{
		{name: "valid", mutate: func(model.Record) {}},
		{name: "dd/mm/yyyy date", mutate: func(r model.Record) { r["transDate"] = "15/03/2024" }},
		{name: "date in the near future", mutate: func(r model.Record) { r["transDate"] = tomorrow }},
		{name: "lowercase adjustment type", mutate: func(r model.Record) { r["adjustmentType"] = "adjustment_out" }},
		{name: "unit cost omitted", mutate: func(r model.Record) { delete(r, "unitCost") }},
		{name: "item code missing", mutate: func(r model.Record) { r["itemNo"] = "  " }, wantField: "itemNo"},
		{name: "item unknown", mutate: func(r model.Record) { r["itemNo"] = "ITM-404" }, wantField: "itemNo"},
		{name: "adjustment type missing", mutate: func(r model.Record) { delete(r, "adjustmentType") }, wantField: "adjustmentType"},
		{name: "adjustment type invalid", mutate: func(r model.Record) { r["adjustmentType"] = "TRANSFER" }, wantField: "adjustmentType"},
		{name: "date missing", mutate: func(r model.Record) { r["transDate"] = "" }, wantField: "transDate"},
		{name: "date unparseable", mutate: func(r model.Record) { r["transDate"] = "March 15" }, wantField: "transDate"},
		{name: "date before 2000", mutate: func(r model.Record) { r["transDate"] = "1999-12-31" }, wantField: "transDate"},
		{name: "date too far ahead", mutate: func(r model.Record) { r["transDate"] = tooLate }, wantField: "transDate"},
		{name: "quantity not a number", mutate: func(r model.Record) { r["quantity"] = "five" }, wantField: "quantity"},
		{name: "quantity zero", mutate: func(r model.Record) { r["quantity"] = "0" }, wantField: "quantity"},
		{name: "quantity negative", mutate: func(r model.Record) { r["quantity"] = "-3" }, wantField: "quantity"},
		{name: "unit cost negative", mutate: func(r model.Record) { r["unitCost"] = "-1" }, wantField: "unitCost"},
		{name: "unit cost not a number", mutate: func(r model.Record) { r["unitCost"] = "free" }, wantField: "unitCost"},
		{name: "unit missing", mutate: func(r model.Record) { r["unitCode"] = "" }, wantField: "unitCode"},
		{name: "unit not registered", mutate: func(r model.Record) { r["unitCode"] = "DOZEN" }, wantField: "unitCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockAccurate()
			importer := application.NewAdjustmentResource(client).NewImporter(testCredential())

			row := validRow("ITM-1", "PCS")
			tt.mutate(row)

			submit, err := importer.Prepare(context.Background(), 7, row)

			if tt.wantField == "" {
				require.NoError(t, err)
				require.NotNil(t, submit)
				return
			}
			var validErr *model.ValidationError
			require.ErrorAs(t, err, &validErr)
			assert.Equal(t, tt.wantField, validErr.Field)
			assert.Equal(t, 7, validErr.RowIndex)
			assert.Nil(t, submit)
		})
	}
}

func TestAdjustmentImporter_SubmitsCanonicalValues(t *testing.T) {
	client := newMockAccurate()
	importer := application.NewAdjustmentResource(client).NewImporter(testCredential())

	row := validRow("ITM-1", "box")
	row["transDate"] = "15/03/2024"
	row["adjustmentType"] = "adjustment_out"
	row["quantity"] = " 2.50 "

	submit, err := importer.Prepare(context.Background(), 1, row)
	require.NoError(t, err)
	assert.Empty(t, client.saved, "Prepare never submits")

	id, err := submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "R-1", id)

	require.Len(t, client.saved, 1)
	got := client.saved[0]
	assert.Equal(t, "BOX", got.UnitCode, "unit takes the item's registered spelling")
	assert.Equal(t, model.AdjustmentOut, got.AdjustmentType)
	assert.Equal(t, "2024-03-15", got.TransDate.Format("2006-01-02"))
	assert.Equal(t, "2.5", got.Quantity.String())
	assert.Equal(t, "1500", got.UnitCost.String())
	assert.Equal(t, "Main", got.Warehouse)
}

func TestAdjustmentImporter_LookupFailureIsNotValidation(t *testing.T) {
	client := newMockAccurate()
	client.getItemErr = &model.ProviderError{Status: 503, Body: "down"}
	importer := application.NewAdjustmentResource(client).NewImporter(testCredential())

	_, err := importer.Prepare(context.Background(), 1, validRow("ITM-1", "PCS"))

	assert.Equal(t, model.KindProvider, model.ErrorKind(err))
	assert.True(t, model.IsTransient(err))
}

func TestAdjustmentResource_ValidateFilters(t *testing.T) {
	res := application.NewAdjustmentResource(newMockAccurate())

	tests := []struct {
		name      string
		filters   map[string]string
		wantField string
	}{
		{name: "none", filters: nil},
		{name: "iso range", filters: map[string]string{"from": "2024-01-01", "to": "2024-12-31"}},
		{name: "accurate dates", filters: map[string]string{"from": "01/01/2024", "to": "31/01/2024"}},
		{name: "same day", filters: map[string]string{"from": "2024-01-01", "to": "01/01/2024"}},
		{name: "blank dates ignored", filters: map[string]string{"from": " ", "keywords": "gudang"}},
		{name: "unknown key", filters: map[string]string{"warehouse": "Main"}, wantField: "filters.warehouse"},
		{name: "bad to", filters: map[string]string{"to": "2024-13-01"}, wantField: "filters.to"},
		{name: "inverted", filters: map[string]string{"from": "2024-02-01", "to": "2024-01-31"}, wantField: "filters.to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := res.ValidateFilters(tt.filters)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var validErr *model.ValidationError
			require.ErrorAs(t, err, &validErr)
			assert.Equal(t, tt.wantField, validErr.Field)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := application.NewRegistry(application.NewAdjustmentResource(newMockAccurate()))

	res, err := reg.Get(model.ResourceItemAdjustment)
	require.NoError(t, err)
	assert.Equal(t, model.ResourceItemAdjustment, res.Type())

	_, err = reg.Get("purchase-order")
	var validErr *model.ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Equal(t, "resource_type", validErr.Field)
	assert.Contains(t, validErr.Reason, "item-adjustment")

	assert.Equal(t, []model.ResourceType{model.ResourceItemAdjustment}, reg.Types())
}
