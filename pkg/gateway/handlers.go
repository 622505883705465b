package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/logging"
	"github.com/opencatalog/restrictedd/pkg/redaction"
	"github.com/opencatalog/restrictedd/pkg/restriction"
)

// userHeader carries the already-authenticated requester identity, set by
// the fronting platform. Verifying it is out of scope here.
const userHeader = "X-Catalog-User"

type apiError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func (s *Server) handleResourceViewList(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	params := requestParams(r)

	id := params.String("id")
	if id == "" {
		writeValidationError(w, "id")
		return
	}

	views, err := s.walker.ResourceViewList(user, id)
	if err != nil {
		s.writeOperationError(w, "resource_view_list", user, err)
		return
	}

	logging.Audit.LogOperation("resource_view_list", user, "success", "resource", id, "views", len(views))
	writeResult(w, views)
}

func (s *Server) handlePackageShow(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	params := requestParams(r)

	id := params.String("id")
	if id == "" {
		writeValidationError(w, "id")
		return
	}

	pkg, err := s.walker.PackageShow(user, id)
	if err != nil {
		s.writeOperationError(w, "package_show", user, err)
		return
	}

	logging.Audit.LogOperation("package_show", user, "success", "package", id)
	writeResult(w, pkg)
}

func (s *Server) handleResourceSearch(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)

	result, err := s.walker.ResourceSearch(user, searchQuery(r))
	if err != nil {
		s.writeOperationError(w, "resource_search", user, err)
		return
	}

	logging.Audit.LogOperation("resource_search", user, "success")
	writeResult(w, result)
}

func (s *Server) handlePackageSearch(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)

	result, err := s.walker.PackageSearch(user, searchQuery(r))
	if err != nil {
		s.writeOperationError(w, "package_search", user, err)
		return
	}

	logging.Audit.LogOperation("package_search", user, "success")
	writeResult(w, result)
}

func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	params := requestParams(r)

	packageID := params.String("package_id")
	resourceID := params.String("resource_id")

	decision, err := s.walker.CheckAccess(user, packageID, resourceID)
	if err != nil {
		s.writeOperationError(w, "restricted_check_access", user, err)
		return
	}

	if !decision.Granted {
		s.denials.Add(1)
	}
	logging.Audit.LogDecision("restricted_check_access", user, resourceID, decision.Granted, "package", packageID)
	writeResult(w, decision)
}

// handleResourceUpdated is the update hook: the platform posts the allow-list
// value captured before the update along with the updated resource record.
// Notification is best-effort and the hook always reports success so the
// triggering write can never be failed from here.
func (s *Server) handleResourceUpdated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Bad request", "POST required")
		return
	}

	var payload struct {
		PreviousAllowedUsers string         `json:"previous_allowed_users"`
		Resource             catalog.Record `json:"resource"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "invalid JSON payload")
		return
	}

	// The platform may post the allow-list as a string or a list; normalize
	// to the canonical string form before diffing.
	resource := restriction.NormalizeFields(payload.Resource)
	s.dispatcher.NotifyAllowedUsers(payload.PreviousAllowedUsers, resource)

	logging.Audit.LogOperation("resource_updated_hook", "", "success",
		"resource", resource.String("id"))
	writeResult(w, true)
}

// writeOperationError maps walker errors onto API responses: validation
// failures name the missing field, missing records are 404, and everything
// else is an infrastructure failure distinct from a policy denial.
func (s *Server) writeOperationError(w http.ResponseWriter, operation, user string, err error) {
	var validation *redaction.ValidationError
	switch {
	case errors.As(err, &validation):
		logging.Audit.LogOperation(operation, user, "invalid", "field", validation.Field)
		writeValidationError(w, validation.Field)
	case errors.Is(err, catalog.ErrResourceNotFound), errors.Is(err, catalog.ErrPackageNotFound):
		logging.Audit.LogOperation(operation, user, "not_found")
		writeError(w, http.StatusNotFound, "Not Found Error", "Not found")
	default:
		logging.App.Error("Operation failed", "op", operation, "user", user, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Internal server error")
	}
}

// requestParams returns the operation parameters: the JSON body for POST
// requests, query parameters otherwise.
func requestParams(r *http.Request) catalog.Record {
	params := catalog.Record{}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&params)
		return params
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

// searchQuery flattens the request parameters into the string map the
// upstream search actions accept.
func searchQuery(r *http.Request) map[string]string {
	query := make(map[string]string)
	for key, value := range requestParams(r) {
		query[key] = fmt.Sprintf("%v", value)
	}
	return query
}

func writeResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Result: result})
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Type: errType, Message: message},
	})
}

func writeValidationError(w http.ResponseWriter, field string) {
	writeError(w, http.StatusConflict, "Validation Error", fmt.Sprintf("Missing %s", field))
}
