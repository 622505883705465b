package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/goware/urlx"
	"github.com/pkg/errors"
)

const actionBasePath = "/api/3/action"

// HTTPSource implements Source against the upstream catalog's action API.
// Calls are made with a privileged service token; the upstream returns raw,
// unredacted records and this layer applies policy on top.
type HTTPSource struct {
	baseURL  url.URL
	apiToken string
	client   *http.Client
}

// NewHTTPSource creates an HTTPSource for the catalog at the given address.
// The address must be a base server address in the form [scheme://]host[:port];
// the scheme defaults to https.
func NewHTTPSource(address string, apiToken string) (*HTTPSource, error) {
	u, err := urlx.ParseWithDefaultScheme(address, "https")
	if err != nil {
		return nil, err
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return nil, errors.New("address must be base server address in the form [scheme://]host[:port]")
	}

	return &HTTPSource{
		baseURL:  *u,
		apiToken: apiToken,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Address returns the configured upstream base address.
func (s *HTTPSource) Address() string {
	return s.baseURL.String()
}

// apiError is the error payload of a failed action call.
type apiError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return e.Message
}

// actionResponse is the envelope every action call returns.
type actionResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error"`
}

// call invokes an upstream action and unmarshals its result into out.
// notFound, when non-nil, is returned for upstream 404 responses so callers
// see the package's sentinel errors instead of transport detail.
func (s *HTTPSource) call(action string, payload interface{}, out interface{}, notFound error) error {
	b := new(bytes.Buffer)
	if payload == nil {
		payload = struct{}{}
	}
	if err := json.NewEncoder(b).Encode(payload); err != nil {
		return errors.WithMessagef(err, "encoding %s request", action)
	}

	u := url.URL{
		Scheme: s.baseURL.Scheme,
		Host:   s.baseURL.Host,
		Path:   path.Join(actionBasePath, action),
	}
	req, err := http.NewRequest(http.MethodPost, u.String(), b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiToken != "" {
		req.Header.Set("Authorization", s.apiToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.WithMessagef(err, "calling %s", action)
	}
	defer safeClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return notFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithMessagef(err, "reading %s response", action)
	}

	var envelope actionResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Errorf("%s: failed to parse response: %v", action, err)
	}
	if !envelope.Success || resp.StatusCode >= 400 {
		if envelope.Error != nil {
			return errors.WithMessage(envelope.Error, action)
		}
		return errors.Errorf("%s: upstream returned status %d", action, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return errors.WithMessagef(err, "decoding %s result", action)
	}
	return nil
}

// ResourceShow implements Source
func (s *HTTPSource) ResourceShow(id string) (Record, error) {
	var resource Record
	if err := s.call("resource_show", Record{"id": id}, &resource, ErrResourceNotFound); err != nil {
		return nil, err
	}
	return resource, nil
}

// PackageShow implements Source
func (s *HTTPSource) PackageShow(id string) (Record, error) {
	var pkg Record
	if err := s.call("package_show", Record{"id": id}, &pkg, ErrPackageNotFound); err != nil {
		return nil, err
	}
	return pkg, nil
}

// ResourceSearch implements Source
func (s *HTTPSource) ResourceSearch(query map[string]string) (Record, error) {
	var result Record
	if err := s.call("resource_search", query, &result, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// PackageSearch implements Source
func (s *HTTPSource) PackageSearch(query map[string]string) (Record, error) {
	var result Record
	if err := s.call("package_search", query, &result, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// ResourceViewList implements Source
func (s *HTTPSource) ResourceViewList(id string) ([]Record, error) {
	var views []Record
	if err := s.call("resource_view_list", Record{"id": id}, &views, ErrResourceNotFound); err != nil {
		return nil, err
	}
	return views, nil
}

// OrganizationListForUser implements Source
func (s *HTTPSource) OrganizationListForUser(username string, permission string) ([]Organization, error) {
	payload := Record{"user": username, "permission": permission}
	var orgs []Organization
	if err := s.call("organization_list_for_user", payload, &orgs, nil); err != nil {
		return nil, err
	}
	return orgs, nil
}

// UserShow implements Source
func (s *HTTPSource) UserShow(id string) (Record, error) {
	var user Record
	if err := s.call("user_show", Record{"id": id}, &user, ErrUserNotFound); err != nil {
		return nil, err
	}
	return user, nil
}

// IsAuthorized implements Source
func (s *HTTPSource) IsAuthorized(username string, action string, data Record) (bool, error) {
	payload := Record{"user": username, "action": action, "data": data}
	var result struct {
		Success bool `json:"success"`
	}
	if err := s.call("is_authorized", payload, &result, nil); err != nil {
		return false, err
	}
	return result.Success, nil
}

// safeClose closes an object while safely handling nils.
func safeClose(closer io.Closer) {
	if closer == nil {
		return
	}
	_ = closer.Close()
}
