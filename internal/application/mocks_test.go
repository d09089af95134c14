package application_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// --- Accurate client ---

// mockAccurate serves a fixed adjustment dataset, one transaction per line,
// and records every saved adjustment.
type mockAccurate struct {
	mu          sync.Mutex
	dataset     []model.InventoryAdjustment
	items       map[string]*model.Item
	listErrPage int   // page number that fails; zero never fails
	listErr     error // returned on listErrPage
	getItemErr  error
	saveFn      func(adj model.InventoryAdjustment) (string, error)

	listCalls    int
	getItemCalls map[string]int
	saved        []model.InventoryAdjustment
	queries      []driven.PageQuery
}

func newMockAccurate() *mockAccurate {
	return &mockAccurate{
		items: map[string]*model.Item{
			"ITM-1": {No: "ITM-1", Name: "Widget", Units: []string{"PCS", "BOX"}},
			"ITM-2": {No: "ITM-2", Name: "Gadget", Units: []string{"PCS"}},
			"ITM-3": {No: "ITM-3", Name: "Gizmo", Units: []string{"KG"}},
			"ITM-4": {No: "ITM-4", Name: "Doohickey", Units: []string{"PCS"}},
			"ITM-5": {No: "ITM-5", Name: "Thingamajig", Units: []string{"Unit"}},
		},
		getItemCalls: map[string]int{},
	}
}

func (m *mockAccurate) ListAdjustments(_ context.Context, _ model.Credential, q driven.PageQuery) ([]model.InventoryAdjustment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	m.queries = append(m.queries, q)
	if m.listErrPage != 0 && q.Page == m.listErrPage {
		return nil, 0, m.listErr
	}

	start := (q.Page - 1) * q.PageSize
	if start >= len(m.dataset) {
		return nil, 0, nil
	}
	end := min(start+q.PageSize, len(m.dataset))
	page := slices.Clone(m.dataset[start:end])
	return page, len(page), nil
}

func (m *mockAccurate) SaveAdjustment(_ context.Context, _ model.Credential, adj model.InventoryAdjustment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveFn != nil {
		id, err := m.saveFn(adj)
		if err != nil {
			return "", err
		}
		m.saved = append(m.saved, adj)
		return id, nil
	}
	m.saved = append(m.saved, adj)
	return fmt.Sprintf("R-%d", len(m.saved)), nil
}

func (m *mockAccurate) GetItem(_ context.Context, _ model.Credential, itemNo string) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getItemCalls[itemNo]++
	if m.getItemErr != nil {
		return nil, m.getItemErr
	}
	item, ok := m.items[itemNo]
	if !ok {
		return nil, &model.NotFoundError{Kind: "item", ID: itemNo}
	}
	return item, nil
}

func (m *mockAccurate) savedItemNos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	nos := make([]string, len(m.saved))
	for i, adj := range m.saved {
		nos[i] = adj.ItemNo
	}
	slices.Sort(nos)
	return nos
}

// seedDataset fills the mock with n valid adjustments cycling over the known items.
func (m *mockAccurate) seedDataset(n int) {
	m.dataset = make([]model.InventoryAdjustment, n)
	for i := range m.dataset {
		itemNo := fmt.Sprintf("ITM-%d", i%5+1)
		item := m.items[itemNo]
		adjType := model.AdjustmentIn
		if i%2 == 1 {
			adjType = model.AdjustmentOut
		}
		m.dataset[i] = model.InventoryAdjustment{
			RemoteID:       fmt.Sprintf("%d", 1000+i),
			Number:         fmt.Sprintf("IA.2024.%05d", i),
			TransDate:      time.Date(2024, time.March, 1+i%28, 0, 0, 0, 0, time.UTC),
			Description:    fmt.Sprintf("stock count %d, shelf \"B\"", i),
			ItemNo:         itemNo,
			ItemName:       item.Name,
			AdjustmentType: adjType,
			Quantity:       decimal.RequireFromString(fmt.Sprintf("%d.5", i+1)),
			UnitCode:       item.Units[0],
			UnitCost:       decimal.RequireFromString(fmt.Sprintf("%d.25", 100+i)),
			Warehouse:      "Main",
		}
	}
}

// --- Credential store ---

type mockCredentialStore struct {
	mu    sync.Mutex
	creds map[string]model.Credential
}

func newMockCredentialStore(creds ...model.Credential) *mockCredentialStore {
	m := &mockCredentialStore{creds: map[string]model.Credential{}}
	for _, c := range creds {
		m.creds[c.ID] = c
	}
	return m
}

func (m *mockCredentialStore) Create(_ context.Context, cred model.Credential) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	m.creds[cred.ID] = cred
	return cred, nil
}

func (m *mockCredentialStore) Get(_ context.Context, id, ownerID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return nil, &model.NotFoundError{Kind: "credential", ID: id}
	}
	return &cred, nil
}

func (m *mockCredentialStore) ListByOwner(_ context.Context, ownerID string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds := []model.Credential{}
	for _, c := range m.creds {
		if c.OwnerID == ownerID {
			creds = append(creds, c)
		}
	}
	return creds, nil
}

func (m *mockCredentialStore) UpdateTokens(_ context.Context, id, ownerID string, grant model.TokenGrant, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return &model.NotFoundError{Kind: "credential", ID: id}
	}
	cred.APIToken = grant.APIToken
	cred.RefreshToken = grant.RefreshToken
	cred.Host = host
	m.creds[id] = cred
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[id]
	if !ok || cred.OwnerID != ownerID {
		return &model.NotFoundError{Kind: "credential", ID: id}
	}
	delete(m.creds, id)
	return nil
}

func (m *mockCredentialStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds)
}

// --- Job store ---

// mockJobStore keeps jobs in memory and applies the same transition rules as
// the SQL store: counters are derived from items and success is never
// overwritten.
type mockJobStore struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	items map[string][]model.JobItem
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: map[string]*model.Job{}, items: map[string][]model.JobItem{}}
}

func (m *mockJobStore) Create(_ context.Context, job model.Job, items []model.JobItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s exists", job.ID)
	}
	m.jobs[job.ID] = &job
	m.items[job.ID] = slices.Clone(items)
	return nil
}

func (m *mockJobStore) Get(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "job", ID: id}
	}
	out := m.snapshot(job)
	out.Items = slices.Clone(m.items[id])
	return &out, nil
}

func (m *mockJobStore) ListByCredential(_ context.Context, credentialID string) ([]model.Job, error) {
	return m.list(func(j *model.Job) bool { return j.CredentialID == credentialID }), nil
}

func (m *mockJobStore) ListByStatus(_ context.Context, status model.JobStatus) ([]model.Job, error) {
	return m.list(func(j *model.Job) bool { return j.Status == status }), nil
}

func (m *mockJobStore) Claim(_ context.Context, id string, from ...model.JobStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(from) == 0 {
		from = []model.JobStatus{model.JobStatusPending}
	}
	job, ok := m.jobs[id]
	if !ok || !slices.Contains(from, job.Status) {
		return false, nil
	}
	job.Status = model.JobStatusRunning
	job.CompletedAt = time.Time{}
	return true, nil
}

func (m *mockJobStore) MarkItem(_ context.Context, jobID string, rowIndex int, outcome model.ItemOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items[jobID]
	for i := range items {
		if items[i].RowIndex != rowIndex {
			continue
		}
		if items[i].Status == model.ItemStatusSuccess {
			return false, nil
		}
		items[i].Status = outcome.Status
		items[i].ErrorMessage = outcome.ErrorMessage
		items[i].RemoteID = outcome.RemoteID
		return true, nil
	}
	return false, nil
}

func (m *mockJobStore) ResetErrorItems(_ context.Context, jobID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	items := m.items[jobID]
	for i := range items {
		if items[i].Status == model.ItemStatusError {
			items[i].Status = model.ItemStatusPending
			items[i].ErrorMessage = ""
			n++
		}
	}
	return n, nil
}

func (m *mockJobStore) Finalize(_ context.Context, jobID, pendingReason, failureReason string) (model.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return "", &model.NotFoundError{Kind: "job", ID: jobID}
	}
	items := m.items[jobID]
	for i := range items {
		if items[i].Status == model.ItemStatusPending {
			items[i].Status = model.ItemStatusError
			items[i].ErrorMessage = pendingReason
		}
	}

	snap := m.snapshot(job)
	status := model.DeriveJobStatus(snap.TotalRows, snap.SucceededRows, snap.FailedRows)
	if failureReason != "" {
		status = model.JobStatusFailed
		job.FailureReason = failureReason
	}
	job.Status = status
	job.CompletedAt = time.Now().UTC()
	return status, nil
}

// put stores a job in an arbitrary status, bypassing the lifecycle.
func (m *mockJobStore) put(job model.Job, items []model.JobItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &job
	m.items[job.ID] = items
}

func (m *mockJobStore) list(match func(*model.Job) bool) []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := []model.Job{}
	for _, job := range m.jobs {
		if match(job) {
			jobs = append(jobs, m.snapshot(job))
		}
	}
	slices.SortFunc(jobs, func(a, b model.Job) int { return strings.Compare(a.ID, b.ID) })
	return jobs
}

// snapshot copies job with counters derived from its items. Callers hold mu.
func (m *mockJobStore) snapshot(job *model.Job) model.Job {
	out := *job
	out.Items = nil
	out.TotalRows, out.SucceededRows, out.FailedRows = 0, 0, 0
	for _, item := range m.items[job.ID] {
		out.TotalRows++
		switch item.Status {
		case model.ItemStatusSuccess:
			out.SucceededRows++
		case model.ItemStatusError:
			out.FailedRows++
		}
	}
	return out
}

// --- OAuth and host resolution ---

type mockOAuth struct {
	grant      model.TokenGrant
	err        error
	refreshErr error
	refreshed  []string
}

func (m *mockOAuth) AuthorizeURL(state string) string {
	return "https://account.example/oauth/authorize?state=" + state
}

func (m *mockOAuth) Exchange(_ context.Context, _ string) (model.TokenGrant, error) {
	if m.err != nil {
		return model.TokenGrant{}, m.err
	}
	return m.grant, nil
}

func (m *mockOAuth) Refresh(_ context.Context, refreshToken string) (model.TokenGrant, error) {
	m.refreshed = append(m.refreshed, refreshToken)
	if m.refreshErr != nil {
		return model.TokenGrant{}, m.refreshErr
	}
	return m.grant, nil
}

type mockResolver struct {
	hosts map[string]string // api token -> host
}

func (m *mockResolver) ResolveHost(_ context.Context, apiToken string) (string, error) {
	host, ok := m.hosts[apiToken]
	if !ok {
		return "", &model.HostResolutionError{Reason: "token rejected by discovery endpoint"}
	}
	return host, nil
}
