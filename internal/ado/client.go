package ado

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dverna/crossplan/internal/domain"
)

// batchSize bounds how many ids one batch-read request may carry; the
// platform caps the endpoint at 200.
const batchSize = 150

// Client is the surface of the work-tracking platform this application
// consumes. All methods classify remote failures into the package sentinel
// errors before returning.
type Client interface {
	// GetWorkItem fetches a single item.
	GetWorkItem(ctx context.Context, id int, project string, expand Expand) (*domain.WorkItem, error)

	// GetWorkItemsByIDs batch-fetches items, chunking large id sets. A
	// failed chunk is reported to the observer and skipped; the remaining
	// chunks still contribute to the result.
	GetWorkItemsByIDs(ctx context.Context, ids []int, project string, fields []string, expand Expand) ([]*domain.WorkItem, error)

	// UpdateWorkItem applies field operations guarded by a revision
	// precondition: the server rejects the patch when the item changed
	// since its last read.
	UpdateWorkItem(ctx context.Context, id int, project string, ops []PatchOp) (*domain.WorkItem, error)

	// CreateWorkItem creates an item of the given type, linking it under
	// parentID via a reverse-hierarchy relation when parentID > 0.
	CreateWorkItem(ctx context.Context, project, itemType string, fields domain.FieldMap, parentID int) (*domain.WorkItem, error)

	// DeleteWorkItem removes an item.
	DeleteWorkItem(ctx context.Context, id int, project string) error

	// QueryIDs executes a flat WIQL query and returns the matching ids.
	QueryIDs(ctx context.Context, project, wiql string) ([]int, error)

	// QueryLinks executes a link-mode WIQL query and returns source/target
	// id pairs.
	QueryLinks(ctx context.Context, project, wiql string) ([]IDPair, error)

	GetProject(ctx context.Context, projectID string) (*Project, error)
	GetTeam(ctx context.Context, projectID, teamID string) (*Team, error)
	GetTeamFieldValues(ctx context.Context, tc TeamContext) ([]string, error)
	GetTeamIterations(ctx context.Context, tc TeamContext) ([]domain.Iteration, error)

	// GetCapacities lists per-member capacity records for one team
	// iteration.
	GetCapacities(ctx context.Context, tc TeamContext, iterationID string) ([]MemberCapacity, error)
}

type httpClient struct {
	cfg      Config
	http     *http.Client
	observer Observer
}

// NewClient creates a Client talking to the configured platform instance.
func NewClient(cfg Config, observer Observer) Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &httpClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}
}

func (c *httpClient) GetWorkItem(ctx context.Context, id int, project string, expand Expand) (*domain.WorkItem, error) {
	path := c.projectPath(project, "_apis/wit/workitems/"+strconv.Itoa(id))
	query := url.Values{}
	if expand != "" && expand != ExpandNone {
		query.Set("$expand", string(expand))
	}

	var dto workItemDTO
	if err := c.call(ctx, "get_work_item", project, http.MethodGet, path, query, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *httpClient) GetWorkItemsByIDs(ctx context.Context, ids []int, project string, fields []string, expand Expand) ([]*domain.WorkItem, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	// Field selection and expansion are mutually exclusive on the batch
	// endpoint; expansion wins when requested.
	if expand != "" && expand != ExpandNone {
		fields = nil
	}

	var out []*domain.WorkItem
	for start := 0; start < len(unique); start += batchSize {
		end := min(start+batchSize, len(unique))
		body := workItemBatchRequest{
			IDs:         unique[start:end],
			Fields:      fields,
			ErrorPolicy: "omit",
		}
		if expand != "" && expand != ExpandNone {
			body.Expand = string(expand)
		}

		var resp workItemBatchResponse
		err := c.call(ctx, "get_work_items_batch", project, http.MethodPost,
			c.projectPath(project, "_apis/wit/workitemsbatch"), nil, body, &resp)
		if err != nil {
			// Partial batch failure: keep whatever other chunks return.
			if ctx.Err() != nil {
				return out, err
			}
			continue
		}
		for i := range resp.Value {
			dto := resp.Value[i]
			if dto.ID <= 0 || dto.Fields == nil {
				continue
			}
			out = append(out, dto.toDomain())
		}
	}
	return out, nil
}

func (c *httpClient) UpdateWorkItem(ctx context.Context, id int, project string, ops []PatchOp) (*domain.WorkItem, error) {
	current, err := c.GetWorkItem(ctx, id, project, ExpandNone)
	if err != nil {
		return nil, fmt.Errorf("reading revision for item %d: %w", id, err)
	}

	doc := append([]PatchOp{revTestOp(current.Rev)}, ops...)
	path := c.projectPath(project, "_apis/wit/workitems/"+strconv.Itoa(id))

	var dto workItemDTO
	if err := c.callPatch(ctx, "update_work_item", project, path, doc, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *httpClient) CreateWorkItem(ctx context.Context, project, itemType string, fields domain.FieldMap, parentID int) (*domain.WorkItem, error) {
	doc := make([]PatchOp, 0, len(fields)+1)
	for ref, value := range fields {
		doc = append(doc, FieldOp("add", ref, value))
	}
	if parentID > 0 {
		doc = append(doc, PatchOp{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]any{
				"rel": string(domain.RelHierarchyReverse),
				"url": fmt.Sprintf("vstfs:///WorkItemTracking/WorkItem/%d", parentID),
			},
		})
	}

	path := c.projectPath(project, "_apis/wit/workitems/$"+url.PathEscape(itemType))
	var dto workItemDTO
	if err := c.callPatch(ctx, "create_work_item", project, path, doc, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *httpClient) DeleteWorkItem(ctx context.Context, id int, project string) error {
	path := c.projectPath(project, "_apis/wit/workitems/"+strconv.Itoa(id))
	return c.call(ctx, "delete_work_item", project, http.MethodDelete, path, nil, nil, nil)
}

func (c *httpClient) QueryIDs(ctx context.Context, project, wiql string) ([]int, error) {
	resp, err := c.queryWIQL(ctx, project, wiql)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, w := range resp.WorkItems {
		if w.ID > 0 {
			out = append(out, w.ID)
		}
	}
	return out, nil
}

func (c *httpClient) QueryLinks(ctx context.Context, project, wiql string) ([]IDPair, error) {
	resp, err := c.queryWIQL(ctx, project, wiql)
	if err != nil {
		return nil, err
	}
	var out []IDPair
	for _, rel := range resp.WorkItemRelations {
		pair := IDPair{}
		if rel.Source != nil {
			pair.SourceID = rel.Source.ID
		}
		if rel.Target != nil {
			pair.TargetID = rel.Target.ID
		}
		if pair.SourceID > 0 || pair.TargetID > 0 {
			out = append(out, pair)
		}
	}
	return out, nil
}

func (c *httpClient) queryWIQL(ctx context.Context, project, wiql string) (*wiqlResponse, error) {
	var resp wiqlResponse
	err := c.call(ctx, "query_wiql", project, http.MethodPost,
		c.projectPath(project, "_apis/wit/wiql"), nil, wiqlRequest{Query: wiql}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var p Project
	err := c.call(ctx, "get_project", projectID, http.MethodGet,
		"_apis/projects/"+url.PathEscape(projectID), nil, nil, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *httpClient) GetTeam(ctx context.Context, projectID, teamID string) (*Team, error) {
	var t Team
	path := fmt.Sprintf("_apis/projects/%s/teams/%s", url.PathEscape(projectID), url.PathEscape(teamID))
	if err := c.call(ctx, "get_team", projectID, http.MethodGet, path, nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *httpClient) GetTeamFieldValues(ctx context.Context, tc TeamContext) ([]string, error) {
	path := fmt.Sprintf("%s/%s/_apis/work/teamsettings/teamfieldvalues",
		url.PathEscape(tc.projectSegment()), url.PathEscape(tc.teamSegment()))

	var resp teamFieldValuesResponse
	if err := c.call(ctx, "get_team_field_values", tc.ProjectID, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	var out []string
	for _, v := range resp.Values {
		if v.Value != "" {
			out = append(out, v.Value)
		}
	}
	return out, nil
}

func (c *httpClient) GetTeamIterations(ctx context.Context, tc TeamContext) ([]domain.Iteration, error) {
	path := fmt.Sprintf("%s/%s/_apis/work/teamsettings/iterations",
		url.PathEscape(tc.projectSegment()), url.PathEscape(tc.teamSegment()))

	var resp iterationsResponse
	if err := c.call(ctx, "get_team_iterations", tc.ProjectID, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Iteration, 0, len(resp.Value))
	for _, v := range resp.Value {
		out = append(out, domain.Iteration{
			ID:         v.ID,
			Name:       v.Name,
			Path:       v.Path,
			StartDate:  v.Attributes.StartDate,
			FinishDate: v.Attributes.FinishDate,
			TimeFrame:  domain.TimeFrame(strings.ToLower(v.Attributes.TimeFrame)),
		})
	}
	return out, nil
}

func (c *httpClient) GetCapacities(ctx context.Context, tc TeamContext, iterationID string) ([]MemberCapacity, error) {
	path := fmt.Sprintf("%s/%s/_apis/work/teamsettings/iterations/%s/capacities",
		url.PathEscape(tc.projectSegment()), url.PathEscape(tc.teamSegment()), url.PathEscape(iterationID))

	var resp capacitiesResponse
	if err := c.call(ctx, "get_capacities", tc.ProjectID, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (tc TeamContext) projectSegment() string {
	if tc.Project != "" {
		return tc.Project
	}
	return tc.ProjectID
}

func (tc TeamContext) teamSegment() string {
	if tc.Team != "" {
		return tc.Team
	}
	return tc.TeamID
}

// call issues one JSON request with retries and classifies the outcome.
func (c *httpClient) call(ctx context.Context, op, project, method, path string, query url.Values, body, out any) error {
	return c.doWithRetry(ctx, op, project, func(ctx context.Context) error {
		return c.doJSON(ctx, method, path, query, body, "application/json", out)
	})
}

// callPatch issues one JSON-patch request. Patch documents are never
// retried: a precondition failure must surface, not loop.
func (c *httpClient) callPatch(ctx context.Context, op, project, path string, doc []PatchOp, out any) error {
	start := time.Now()
	err := c.doJSON(ctx, http.MethodPatch, path, nil, doc, "application/json-patch+json", out)
	c.observe(op, project, 0, start, err)
	return err
}

func (c *httpClient) doWithRetry(ctx context.Context, op, project string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	var lastErr error
	attempts := 1 + c.cfg.MaxRetries
	for i := 0; i < attempts; i++ {
		err := fn(ctx)
		if err == nil {
			c.observe(op, project, 0, start, nil)
			return nil
		}
		lastErr = err

		// Classified client-side failures and cancellations don't retry.
		if ctx.Err() != nil ||
			errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) ||
			errors.Is(err, ErrRevisionConflict) {
			break
		}
	}

	c.observe(op, project, 0, start, lastErr)
	if ctx.Err() != nil && !errors.Is(lastErr, ErrNotFound) && !errors.Is(lastErr, ErrPermission) {
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	return lastErr
}

func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, body any, contentType string, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.cfg.APIVersion)
	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Basic "+
			base64.StdEncoding.EncodeToString([]byte(":"+c.cfg.Token)))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the package error taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrPermission, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, status)
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: status %d", ErrRevisionConflict, status)
	case status == http.StatusBadRequest && bytes.Contains(body, []byte("VS403351")):
		// The platform reports a failed /rev test op as a 400 with a
		// rule-violation payload rather than a 412.
		return fmt.Errorf("%w: rejected precondition", ErrRevisionConflict)
	default:
		return fmt.Errorf("platform returned status %d: %s", status, truncate(body, 200))
	}
}

func (c *httpClient) projectPath(project, rest string) string {
	if project == "" {
		return rest
	}
	return url.PathEscape(project) + "/" + rest
}

func (c *httpClient) observe(op, project string, count int, start time.Time, err error) {
	c.observer.OnCallComplete(CallEvent{
		Operation: op,
		Project:   project,
		Count:     count,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
		ErrorCode: errorCode(err),
	})
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRevisionConflict):
		return "REVISION_CONFLICT"
	case errors.Is(err, ErrPermission):
		return "PERMISSION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	var out []int
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
