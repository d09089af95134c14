// Package accurate implements the Accurate Online driven ports: the OAuth
// exchange, host discovery, request signing and the rate-limited data client.
package accurate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccurateClient = (*Client)(nil)

const (
	pathAdjustmentList = "/accurate/api/item-adjustment/list.do"
	pathAdjustmentSave = "/accurate/api/item-adjustment/save.do"
	pathItemDetail     = "/accurate/api/item/detail.do"

	adjustmentFields = "id,number,transDate,description,detailItem"

	// accurateDate is the dd/MM/yyyy layout Accurate uses on the wire.
	accurateDate = "02/01/2006"
)

// Client implements driven.AccurateClient. Every call is signed with the
// credential's signature secret and routed through the Dispatcher under the
// credential's own limiter.
type Client struct {
	dispatcher *Dispatcher
	scheme     string
	now        func() time.Time
}

// NewClient creates a Client that talks HTTPS to each credential's host.
func NewClient(dispatcher *Dispatcher) *Client {
	return &Client{dispatcher: dispatcher, scheme: "https", now: time.Now}
}

// NewClientWithScheme creates a Client with a custom URL scheme.
// This constructor is intended for testing against plain-HTTP httptest servers.
func NewClientWithScheme(dispatcher *Dispatcher, scheme string) *Client {
	return &Client{dispatcher: dispatcher, scheme: scheme, now: time.Now}
}

// envelope is the response wrapper every Accurate data endpoint uses.
type envelope struct {
	S  bool            `json:"s"`
	D  json.RawMessage `json:"d"`
	SP *pageInfo       `json:"sp"`
	R  json.RawMessage `json:"r"`
}

type pageInfo struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	RowCount  int `json:"rowCount"`
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexID(strings.Trim(s, `"`))
	return nil
}

type namedRef struct {
	No   string `json:"no"`
	Name string `json:"name"`
}

type adjustmentLine struct {
	Item               namedRef        `json:"item"`
	ItemAdjustmentType string          `json:"itemAdjustmentType"`
	Quantity           decimal.Decimal `json:"quantity"`
	ItemUnit           namedRef        `json:"itemUnit"`
	UnitCost           decimal.Decimal `json:"unitCost"`
	Warehouse          namedRef        `json:"warehouse"`
}

type adjustmentRecord struct {
	ID          flexID           `json:"id"`
	Number      string           `json:"number"`
	TransDate   string           `json:"transDate"`
	Description string           `json:"description"`
	DetailItem  []adjustmentLine `json:"detailItem"`
}

type itemRecord struct {
	No    string    `json:"no"`
	Name  string    `json:"name"`
	Unit1 *namedRef `json:"unit1"`
	Unit2 *namedRef `json:"unit2"`
	Unit3 *namedRef `json:"unit3"`
	Unit4 *namedRef `json:"unit4"`
	Unit5 *namedRef `json:"unit5"`
}

type saveResult struct {
	ID flexID `json:"id"`
}

// ListAdjustments retrieves one page of item adjustments and flattens every
// transaction into one entry per detail line.
func (c *Client) ListAdjustments(ctx context.Context, cred model.Credential, q driven.PageQuery) ([]model.InventoryAdjustment, int, error) {
	params := url.Values{}
	params.Set("fields", adjustmentFields)
	params.Set("sp.page", strconv.Itoa(q.Page))
	params.Set("sp.pageSize", strconv.Itoa(q.PageSize))
	applyAdjustmentFilter(params, q.Filters)

	env, err := c.call(ctx, cred, http.MethodGet, pathAdjustmentList, params)
	if err != nil {
		return nil, 0, fmt.Errorf("listing item adjustments (page %d): %w", q.Page, err)
	}
	if !env.S {
		return nil, 0, &model.RejectedError{Messages: rejectionMessages(env.D)}
	}

	var records []adjustmentRecord
	if len(env.D) > 0 && string(env.D) != "null" {
		if err := json.Unmarshal(env.D, &records); err != nil {
			return nil, 0, fmt.Errorf("decoding item adjustment page %d: %w", q.Page, err)
		}
	}

	logPage(cred, pathAdjustmentList, q.Page, len(records), env.SP)

	adjustments := make([]model.InventoryAdjustment, 0, len(records))
	for _, rec := range records {
		mapped, err := mapAdjustment(rec)
		if err != nil {
			return nil, 0, err
		}
		adjustments = append(adjustments, mapped...)
	}

	return adjustments, len(records), nil
}

// SaveAdjustment creates a single-line item adjustment and returns its remote id.
func (c *Client) SaveAdjustment(ctx context.Context, cred model.Credential, adj model.InventoryAdjustment) (string, error) {
	form := url.Values{}
	form.Set("transDate", adj.TransDate.Format(accurateDate))
	if adj.Description != "" {
		form.Set("description", adj.Description)
	}
	form.Set("detailItem[0].itemNo", adj.ItemNo)
	form.Set("detailItem[0].itemAdjustmentType", string(adj.AdjustmentType))
	form.Set("detailItem[0].quantity", adj.Quantity.String())
	form.Set("detailItem[0].itemUnitName", adj.UnitCode)
	if !adj.UnitCost.IsZero() {
		form.Set("detailItem[0].unitCost", adj.UnitCost.String())
	}
	if adj.Warehouse != "" {
		form.Set("detailItem[0].warehouseName", adj.Warehouse)
	}

	env, err := c.call(ctx, cred, http.MethodPost, pathAdjustmentSave, form)
	if err != nil {
		return "", fmt.Errorf("saving item adjustment for %s: %w", adj.ItemNo, err)
	}
	if !env.S {
		return "", &model.RejectedError{Messages: rejectionMessages(env.D)}
	}

	var res saveResult
	if len(env.R) > 0 {
		if err := json.Unmarshal(env.R, &res); err != nil {
			return "", fmt.Errorf("decoding save result: %w", err)
		}
	}
	if res.ID == "" {
		return "", fmt.Errorf("saving item adjustment for %s: provider returned no id", adj.ItemNo)
	}

	return string(res.ID), nil
}

// GetItem looks up an item by its code.
func (c *Client) GetItem(ctx context.Context, cred model.Credential, itemNo string) (*model.Item, error) {
	params := url.Values{}
	params.Set("no", itemNo)

	env, err := c.call(ctx, cred, http.MethodGet, pathItemDetail, params)
	if err != nil {
		var reqErr *model.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return nil, &model.NotFoundError{Kind: "item", ID: itemNo}
		}
		return nil, fmt.Errorf("fetching item %s: %w", itemNo, err)
	}
	if !env.S || len(env.D) == 0 || string(env.D) == "null" {
		return nil, &model.NotFoundError{Kind: "item", ID: itemNo}
	}

	var rec itemRecord
	if err := json.Unmarshal(env.D, &rec); err != nil {
		return nil, fmt.Errorf("decoding item %s: %w", itemNo, err)
	}

	item := &model.Item{No: rec.No, Name: rec.Name}
	if item.No == "" {
		item.No = itemNo
	}
	for _, u := range []*namedRef{rec.Unit1, rec.Unit2, rec.Unit3, rec.Unit4, rec.Unit5} {
		if u != nil && u.Name != "" {
			item.Units = append(item.Units, u.Name)
		}
	}

	return item, nil
}

// call signs and dispatches one request and decodes the response envelope.
// GET parameters travel in the query string and POST parameters as a form body.
func (c *Client) call(ctx context.Context, cred model.Credential, method, path string, params url.Values) (*envelope, error) {
	if cred.Host == "" {
		return nil, fmt.Errorf("credential %s has no database host", cred.ID)
	}

	target := url.URL{Scheme: c.scheme, Host: cred.Host, Path: path}
	var body []byte
	if method == http.MethodGet {
		target.RawQuery = params.Encode()
	} else {
		body = []byte(params.Encode())
	}
	endpoint := target.String()

	resp, err := c.dispatcher.Do(ctx, cred.ID, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+cred.APIToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		signRequest(req, cred.SignatureSecret, c.now())
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &model.ProviderError{Status: resp.Status, Body: "malformed response: " + truncate(resp.Body)}
	}
	return &env, nil
}

// applyAdjustmentFilter translates a listing filter into Accurate's
// filter.<field>.op / filter.<field>.val query parameters.
func applyAdjustmentFilter(params url.Values, f driven.AdjustmentFilter) {
	switch {
	case !f.From.IsZero() && !f.To.IsZero():
		params.Set("filter.transDate.op", "BETWEEN")
		params.Set("filter.transDate.val[0]", f.From.Format(accurateDate))
		params.Set("filter.transDate.val[1]", f.To.Format(accurateDate))
	case !f.From.IsZero():
		params.Set("filter.transDate.op", "GREATER_EQUAL_THAN")
		params.Set("filter.transDate.val", f.From.Format(accurateDate))
	case !f.To.IsZero():
		params.Set("filter.transDate.op", "LESS_EQUAL_THAN")
		params.Set("filter.transDate.val", f.To.Format(accurateDate))
	}

	if f.Keywords != "" {
		params.Set("filter.keywords.op", "CONTAIN")
		params.Set("filter.keywords.val", f.Keywords)
	}
}

func mapAdjustment(rec adjustmentRecord) ([]model.InventoryAdjustment, error) {
	var transDate time.Time
	if rec.TransDate != "" {
		t, err := time.Parse(accurateDate, rec.TransDate)
		if err != nil {
			return nil, fmt.Errorf("parsing transDate %q of adjustment %s: %w", rec.TransDate, rec.ID, err)
		}
		transDate = t
	}

	out := make([]model.InventoryAdjustment, 0, len(rec.DetailItem))
	for _, line := range rec.DetailItem {
		out = append(out, model.InventoryAdjustment{
			RemoteID:       string(rec.ID),
			Number:         rec.Number,
			TransDate:      transDate,
			Description:    rec.Description,
			ItemNo:         line.Item.No,
			ItemName:       line.Item.Name,
			AdjustmentType: model.AdjustmentType(line.ItemAdjustmentType),
			Quantity:       line.Quantity,
			UnitCode:       line.ItemUnit.Name,
			UnitCost:       line.UnitCost,
			Warehouse:      line.Warehouse.Name,
		})
	}
	return out, nil
}

// rejectionMessages extracts the human-readable messages Accurate puts in "d"
// when "s" is false. "d" is a string or an array of strings.
func rejectionMessages(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	return []string{truncate(raw)}
}

// logPage logs the paging metadata of a listing call.
func logPage(cred model.Credential, endpoint string, page, count int, sp *pageInfo) {
	attrs := []any{
		"credential_id", cred.ID,
		"endpoint", endpoint,
		"page", page,
		"count", count,
	}
	if sp != nil {
		attrs = append(attrs, "page_count", sp.PageCount, "row_count", sp.RowCount)
	}
	slog.Debug("accurate api call", attrs...)
}
