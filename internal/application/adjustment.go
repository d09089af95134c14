package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Item adjustment columns, shared by exports and imports.
const (
	ColID             = "id"
	ColNumber         = "number"
	ColTransDate      = "transDate"
	ColItemNo         = "itemNo"
	ColItemName       = "itemName"
	ColAdjustmentType = "adjustmentType"
	ColQuantity       = "quantity"
	ColUnitCode       = "unitCode"
	ColUnitCost       = "unitCost"
	ColWarehouse      = "warehouse"
	ColDescription    = "description"
)

// Export filter keys accepted by the item adjustment resource.
const (
	FilterFrom     = "from"
	FilterTo       = "to"
	FilterKeywords = "keywords"
)

// dateLayout is the ISO date written to exports. Imports also accept the
// dd/mm/yyyy form Accurate uses.
const dateLayout = "2006-01-02"

var (
	adjustmentColumns = []string{
		ColID, ColNumber, ColTransDate, ColItemNo, ColItemName, ColAdjustmentType,
		ColQuantity, ColUnitCode, ColUnitCost, ColWarehouse, ColDescription,
	}

	earliestTransDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	itemCacheSize = 1024
	itemCacheTTL  = 10 * time.Minute

	// maxFutureDays bounds how far ahead a transaction date may lie.
	maxFutureDays = 365
)

// AdjustmentResource exports and imports Accurate item adjustments.
type AdjustmentResource struct {
	client driven.AccurateClient
	now    func() time.Time
}

var _ Resource = (*AdjustmentResource)(nil)

// NewAdjustmentResource creates an AdjustmentResource using client.
func NewAdjustmentResource(client driven.AccurateClient) *AdjustmentResource {
	return &AdjustmentResource{client: client, now: time.Now}
}

// Type returns model.ResourceItemAdjustment.
func (r *AdjustmentResource) Type() model.ResourceType { return model.ResourceItemAdjustment }

// Columns returns the item adjustment columns in file order.
func (r *AdjustmentResource) Columns() []string {
	return append([]string(nil), adjustmentColumns...)
}

// ValidateFilters accepts from, to (dates) and keywords.
func (r *AdjustmentResource) ValidateFilters(filters map[string]string) error {
	_, err := parseAdjustmentFilter(filters)
	return err
}

// ListPage lists one page of item adjustments, one record per detail line.
func (r *AdjustmentResource) ListPage(ctx context.Context, cred model.Credential, filters map[string]string, page, pageSize int) ([]model.Record, int, error) {
	filter, err := parseAdjustmentFilter(filters)
	if err != nil {
		return nil, 0, err
	}

	adjustments, count, err := r.client.ListAdjustments(ctx, cred, driven.PageQuery{
		Page:     page,
		PageSize: pageSize,
		Filters:  filter,
	})
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.Record, 0, len(adjustments))
	for _, adj := range adjustments {
		records = append(records, adjustmentRecord(adj))
	}
	return records, count, nil
}

// NewImporter returns a RowImporter with its own item lookup cache.
func (r *AdjustmentResource) NewImporter(cred model.Credential) RowImporter {
	return &adjustmentImporter{
		client: r.client,
		cred:   cred,
		now:    r.now,
		items:  expirable.NewLRU[string, *model.Item](itemCacheSize, nil, itemCacheTTL),
	}
}

func adjustmentRecord(adj model.InventoryAdjustment) model.Record {
	var transDate string
	if !adj.TransDate.IsZero() {
		transDate = adj.TransDate.Format(dateLayout)
	}
	return model.Record{
		ColID:             adj.RemoteID,
		ColNumber:         adj.Number,
		ColTransDate:      transDate,
		ColItemNo:         adj.ItemNo,
		ColItemName:       adj.ItemName,
		ColAdjustmentType: string(adj.AdjustmentType),
		ColQuantity:       adj.Quantity.String(),
		ColUnitCode:       adj.UnitCode,
		ColUnitCost:       adj.UnitCost.String(),
		ColWarehouse:      adj.Warehouse,
		ColDescription:    adj.Description,
	}
}

func parseAdjustmentFilter(filters map[string]string) (driven.AdjustmentFilter, error) {
	var f driven.AdjustmentFilter
	for key, value := range filters {
		value = strings.TrimSpace(value)
		switch key {
		case FilterFrom, FilterTo:
			if value == "" {
				continue
			}
			t, err := parseDate(value)
			if err != nil {
				return f, &model.ValidationError{RowIndex: -1, Field: "filters." + key, Reason: err.Error()}
			}
			if key == FilterFrom {
				f.From = t
			} else {
				f.To = t
			}
		case FilterKeywords:
			f.Keywords = value
		default:
			return f, &model.ValidationError{RowIndex: -1, Field: "filters." + key, Reason: "unknown filter"}
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, &model.ValidationError{RowIndex: -1, Field: "filters.to", Reason: "must not be before from"}
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date (want YYYY-MM-DD or DD/MM/YYYY)", s)
}

// adjustmentImporter validates rows of one job. Item lookups are cached and
// concurrent lookups of the same code share one provider call.
type adjustmentImporter struct {
	client driven.AccurateClient
	cred   model.Credential
	now    func() time.Time
	items  *expirable.LRU[string, *model.Item]
	group  singleflight.Group
}

// Prepare validates rec and returns its submission.
func (a *adjustmentImporter) Prepare(ctx context.Context, rowIndex int, rec model.Record) (Submission, error) {
	invalid := func(field, reason string) error {
		return &model.ValidationError{RowIndex: rowIndex, Field: field, Reason: reason}
	}
	get := func(col string) string { return strings.TrimSpace(rec[col]) }

	adj := model.InventoryAdjustment{
		Description: get(ColDescription),
		Warehouse:   get(ColWarehouse),
	}

	adj.ItemNo = get(ColItemNo)
	if adj.ItemNo == "" {
		return nil, invalid(ColItemNo, "is required")
	}

	switch t := model.AdjustmentType(strings.ToUpper(get(ColAdjustmentType))); t {
	case model.AdjustmentIn, model.AdjustmentOut:
		adj.AdjustmentType = t
	case "":
		return nil, invalid(ColAdjustmentType, "is required")
	default:
		return nil, invalid(ColAdjustmentType, fmt.Sprintf("must be %s or %s", model.AdjustmentIn, model.AdjustmentOut))
	}

	rawDate := get(ColTransDate)
	if rawDate == "" {
		return nil, invalid(ColTransDate, "is required")
	}
	transDate, err := parseDate(rawDate)
	if err != nil {
		return nil, invalid(ColTransDate, err.Error())
	}
	latest := a.now().AddDate(0, 0, maxFutureDays)
	if transDate.Before(earliestTransDate) || transDate.After(latest) {
		return nil, invalid(ColTransDate, fmt.Sprintf("must be between %s and %s",
			earliestTransDate.Format(dateLayout), latest.Format(dateLayout)))
	}
	adj.TransDate = transDate

	qty, err := decimal.NewFromString(get(ColQuantity))
	if err != nil {
		return nil, invalid(ColQuantity, "must be a number")
	}
	if !qty.IsPositive() {
		return nil, invalid(ColQuantity, "must be greater than zero")
	}
	adj.Quantity = qty

	if raw := get(ColUnitCost); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, invalid(ColUnitCost, "must be a number")
		}
		if cost.IsNegative() {
			return nil, invalid(ColUnitCost, "must not be negative")
		}
		adj.UnitCost = cost
	}

	unit := get(ColUnitCode)
	if unit == "" {
		return nil, invalid(ColUnitCode, "is required")
	}

	item, err := a.lookupItem(ctx, adj.ItemNo)
	if err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, invalid(ColItemNo, fmt.Sprintf("item %q not found", adj.ItemNo))
		}
		return nil, fmt.Errorf("look up item %s: %w", adj.ItemNo, err)
	}

	matched := ""
	for _, u := range item.Units {
		if strings.EqualFold(u, unit) {
			matched = u
			break
		}
	}
	if matched == "" {
		return nil, invalid(ColUnitCode, fmt.Sprintf("unit %q is not registered for item %s (units: %s)",
			unit, adj.ItemNo, strings.Join(item.Units, ", ")))
	}
	adj.UnitCode = matched

	return func(ctx context.Context) (string, error) {
		return a.client.SaveAdjustment(ctx, a.cred, adj)
	}, nil
}

// lookupItem resolves an item code through the cache. Misses are cached as
// nil so unknown codes are looked up once per job.
func (a *adjustmentImporter) lookupItem(ctx context.Context, itemNo string) (*model.Item, error) {
	key := strings.ToUpper(itemNo)
	if item, ok := a.items.Get(key); ok {
		if item == nil {
			return nil, &model.NotFoundError{Kind: "item", ID: itemNo}
		}
		return item, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		item, err := a.client.GetItem(ctx, a.cred, itemNo)
		if err != nil {
			var notFound *model.NotFoundError
			if errors.As(err, &notFound) {
				a.items.Add(key, nil)
			}
			return nil, err
		}
		a.items.Add(key, item)
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Item), nil
}
