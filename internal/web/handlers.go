package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aurelio-data/cartera/internal/core"
	"github.com/go-chi/chi/v5"
)

// ---------------------------------------------------------------------------
// Request scoping helpers
// ---------------------------------------------------------------------------

// scopeParams extracts the sub-portfolio id and load cycle every API route
// carries in its URL.
func scopeParams(r *http.Request) (int64, core.LoadCycle, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "subPortfolioID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	cycle, ok := core.ParseLoadCycle(chi.URLParam(r, "cycle"))
	if !ok {
		return 0, "", false
	}
	return id, cycle, true
}

// actorFrom returns the acting user recorded in the change history. The
// caller identifies itself via the X-Actor header; authentication is out of
// scope here and handled upstream.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

// decodeBody decodes the request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ---------------------------------------------------------------------------
// Column resolution
// ---------------------------------------------------------------------------

type resolveRequest struct {
	Columns []string `json:"columns"`
}

func (s *Server) handleResolveColumns(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Columns) == 0 {
		badRequest(w, "columns must not be empty")
		return
	}

	result, err := s.service.ResolveColumns(r.Context(), id, cycle, req.Columns)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Header catalog
// ---------------------------------------------------------------------------

// headerPayload is the wire form of a header definition.
type headerPayload struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	FormatOverride string `json:"formatOverride,omitempty"`
	DisplayLabel   string `json:"displayLabel,omitempty"`
	Required       bool   `json:"required,omitempty"`
	SourceField    string `json:"sourceField,omitempty"`
	ExtractPattern string `json:"extractPattern,omitempty"`
	Column         string `json:"column,omitempty"`
}

type aliasPayload struct {
	ID        int64  `json:"id"`
	HeaderID  int64  `json:"headerId"`
	Alias     string `json:"alias"`
	Principal bool   `json:"principal"`
}

type catalogResponse struct {
	SubPortfolioID int64           `json:"subPortfolioId"`
	Cycle          core.LoadCycle  `json:"cycle"`
	Headers        []headerPayload `json:"headers"`
	Aliases        []aliasPayload  `json:"aliases"`
}

func toHeaderPayload(h core.HeaderDefinition) headerPayload {
	return headerPayload{
		ID:             h.ID,
		Name:           h.Name,
		Type:           string(h.Type),
		FormatOverride: h.FormatOverride,
		DisplayLabel:   h.DisplayLabel,
		Required:       h.Required,
		SourceField:    h.SourceField,
		ExtractPattern: h.ExtractPattern,
		Column:         h.Column(),
	}
}

func (s *Server) handleListHeaders(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	catalog, err := s.service.LoadCatalog(r.Context(), id, cycle)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := catalogResponse{
		SubPortfolioID: catalog.SubPortfolioID,
		Cycle:          catalog.Cycle,
		Headers:        make([]headerPayload, 0, len(catalog.Headers)),
		Aliases:        make([]aliasPayload, 0, len(catalog.Aliases)),
	}
	for _, h := range catalog.Headers {
		resp.Headers = append(resp.Headers, toHeaderPayload(h))
	}
	for _, a := range catalog.Aliases {
		resp.Aliases = append(resp.Aliases, aliasPayload{
			ID:        a.ID,
			HeaderID:  a.HeaderID,
			Alias:     a.Alias,
			Principal: a.Principal,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateHeader(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	var req headerPayload
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	header := core.HeaderDefinition{
		SubPortfolioID: id,
		Cycle:          cycle,
		Name:           req.Name,
		Type:           core.SemanticType(req.Type),
		FormatOverride: req.FormatOverride,
		DisplayLabel:   req.DisplayLabel,
		Required:       req.Required,
		SourceField:    req.SourceField,
		ExtractPattern: req.ExtractPattern,
	}

	created, err := s.service.CreateHeader(r.Context(), header, actorFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHeaderPayload(created))
}

type addAliasRequest struct {
	HeaderID int64  `json:"headerId"`
	Alias    string `json:"alias"`
}

func (s *Server) handleAddAlias(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	var req addAliasRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.HeaderID <= 0 || req.Alias == "" {
		badRequest(w, "headerId and alias are required")
		return
	}

	if err := s.service.AddAlias(r.Context(), id, cycle, req.HeaderID, req.Alias, actorFrom(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveAlias(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	alias := chi.URLParam(r, "alias")
	if alias == "" {
		badRequest(w, "alias is required")
		return
	}

	if err := s.service.RemoveAlias(r.Context(), id, cycle, alias, actorFrom(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ignoreColumnRequest struct {
	Column string `json:"column"`
}

func (s *Server) handleIgnoreColumn(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	var req ignoreColumnRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Column == "" {
		badRequest(w, "column is required")
		return
	}

	if err := s.service.IgnoreColumn(r.Context(), id, cycle, req.Column, actorFrom(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnignoreColumn(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	column := chi.URLParam(r, "column")
	if column == "" {
		badRequest(w, "column is required")
		return
	}

	if err := s.service.UnignoreColumn(r.Context(), id, cycle, column, actorFrom(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return
	}

	limit := parseIntParam(r, "limit", 100)
	entries, err := s.service.ListHistory(r.Context(), id, cycle, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ---------------------------------------------------------------------------
// Provider table schema
// ---------------------------------------------------------------------------

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	scope, catalog, ok := s.resolveScope(w, r)
	if !ok {
		return
	}

	table, err := s.service.CreateTable(r.Context(), scope, catalog.Headers)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"table": table})
}

func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	if err := s.service.DropTable(r.Context(), scope); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type columnRequest struct {
	Header string `json:"header"`
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	scope, catalog, ok := s.resolveScope(w, r)
	if !ok {
		return
	}

	var req columnRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	header, found := catalog.HeaderByName(req.Header)
	if !found {
		badRequest(w, "unknown header "+strconv.Quote(req.Header))
		return
	}

	if err := s.service.AddColumn(r.Context(), scope, header); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"column": header.Column()})
}

func (s *Server) handleDropColumn(w http.ResponseWriter, r *http.Request) {
	scope, catalog, ok := s.resolveScope(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	header, found := catalog.HeaderByName(name)
	if !found {
		badRequest(w, "unknown header "+strconv.Quote(name))
		return
	}

	if err := s.service.DropColumn(r.Context(), scope, header); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupScope loads the tenant hierarchy scope for the route's
// sub-portfolio and cycle. On failure it writes the error response itself.
func (s *Server) lookupScope(w http.ResponseWriter, r *http.Request) (core.Scope, bool) {
	id, cycle, ok := scopeParams(r)
	if !ok {
		badRequest(w, "invalid sub-portfolio id or cycle")
		return core.Scope{}, false
	}

	scope, err := s.service.LookupScope(r.Context(), id, cycle)
	if err != nil {
		s.respondError(w, r, err)
		return core.Scope{}, false
	}
	return scope, true
}

// resolveScope additionally loads the header catalog, for handlers that
// need header definitions alongside the scope.
func (s *Server) resolveScope(w http.ResponseWriter, r *http.Request) (core.Scope, *core.Catalog, bool) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return core.Scope{}, nil, false
	}

	catalog, err := s.service.LoadCatalog(r.Context(), scope.SubPortfolioID, scope.Cycle)
	if err != nil {
		s.respondError(w, r, err)
		return core.Scope{}, nil, false
	}
	return scope, catalog, true
}

// ---------------------------------------------------------------------------
// Row loading
// ---------------------------------------------------------------------------

// loadRowsRequest carries the rows to insert. When Columns is present the
// rows are keyed by the raw file column names and are resolved and remapped
// to canonical headers first; otherwise they must already use canonical
// header names.
type loadRowsRequest struct {
	Columns []string      `json:"columns,omitempty"`
	Rows    []core.RowMap `json:"rows"`
}

func (s *Server) handleLoadRows(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	var req loadRowsRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Rows) == 0 {
		badRequest(w, "rows must not be empty")
		return
	}

	rows := req.Rows
	if len(req.Columns) > 0 {
		resolution, err := s.service.ResolveColumns(r.Context(), scope.SubPortfolioID, scope.Cycle, req.Columns)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if len(resolution.MissingRequired) > 0 {
			badRequest(w, "missing required headers: "+strings.Join(resolution.MissingRequired, ", "))
			return
		}
		remapped := make([]core.RowMap, len(rows))
		for i, row := range rows {
			remapped[i] = core.RemapRow(row, resolution)
		}
		rows = remapped
	}

	result, err := s.service.LoadRows(r.Context(), scope, rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResultPayload(result))
}

// loadResultPayload flattens the duration for JSON clients.
func loadResultPayload(res core.LoadResult) map[string]any {
	return map[string]any{
		"table":       res.Table,
		"inserted":    res.Inserted,
		"failed":      res.Failed,
		"errors":      res.Errors,
		"totalErrors": res.TotalErrors,
		"duration":    res.Duration.String(),
	}
}

// ---------------------------------------------------------------------------
// Consolidation
// ---------------------------------------------------------------------------

type syncRequest struct {
	IdentityColumn string   `json:"identityColumn"`
	Keys           []string `json:"keys,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.IdentityColumn == "" {
		badRequest(w, "identityColumn is required")
		return
	}

	result, err := s.service.SyncTable(r.Context(), scope, req.IdentityColumn, req.Keys)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created":     result.Created,
		"updated":     result.Updated,
		"rowsScanned": result.RowsScanned,
		"scope":       result.Scope,
		"errors":      result.Errors,
		"totalErrors": result.TotalErrors,
		"duration":    result.Duration.String(),
	})
}

// ---------------------------------------------------------------------------
// Period archiving
// ---------------------------------------------------------------------------

type archiveRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	var req archiveRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	period := core.Period{Year: req.Year, Month: time.Month(req.Month)}
	if req.Year == 0 && req.Month == 0 {
		period = core.PeriodOf(time.Now())
	} else if req.Year < 2000 || req.Month < 1 || req.Month > 12 {
		badRequest(w, "invalid archive period")
		return
	}

	result, err := s.service.Archive(r.Context(), scope, period)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePeriodStatus(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	status, err := s.service.CheckPeriodStatus(r.Context(), scope)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
