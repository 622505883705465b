package notification

import (
	"fmt"
	"strings"

	golog "github.com/fclairamb/go-log"

	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/restriction"
)

// UserSource resolves user records for notification delivery. The lookup is
// elevated: it bypasses the catalog's visibility rules so the address of a
// user hidden from the requester can still be mailed.
type UserSource interface {
	UserShow(id string) (catalog.Record, error)
}

// Config carries the site identity stamped into notification mails.
type Config struct {
	SiteTitle  string
	SiteURL    string
	AdminEmail string
}

// Dispatcher emails users newly added to a resource's allow-list, with a
// forwarded copy to the site administrator. Delivery is best-effort: a
// failure for one user is logged and never aborts the other users or the
// update that triggered the notification.
type Dispatcher struct {
	users     UserSource
	templates *TemplateSource
	mailer    Mailer
	config    Config
	log       golog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(users UserSource, templates *TemplateSource, mailer Mailer, config Config, logger golog.Logger) *Dispatcher {
	return &Dispatcher{
		users:     users,
		templates: templates,
		mailer:    mailer,
		config:    config,
		log:       logger,
	}
}

// NotifyAllowedUsers compares the allow-list captured before a resource
// update with the updated record and notifies every user that appears only
// in the new list. Membership is literal: entries are not trimmed, so a
// whitespace difference counts as a new user.
func (d *Dispatcher) NotifyAllowedUsers(previousValue string, resource catalog.Record) {
	updatedValue := resource.String(restriction.FieldAllowedUsers)

	previous := make(map[string]bool)
	for _, id := range strings.Split(previousValue, ",") {
		previous[id] = true
	}

	seen := make(map[string]bool)
	for _, userID := range strings.Split(updatedValue, ",") {
		if seen[userID] || previous[userID] {
			continue
		}
		seen[userID] = true

		if err := d.notifyUser(userID, resource); err != nil {
			d.log.Warn("Failed to notify allowed user", "user", userID, "error", err)
		}
	}
}

func (d *Dispatcher) notifyUser(userID string, resource catalog.Record) error {
	d.log.Debug("Notifying newly allowed user", "user", userID)

	user, err := d.users.UserShow(userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	address := user.String("email")
	if address == "" {
		return fmt.Errorf("user %q has no email address", userID)
	}

	displayName := user.String("display_name")
	if displayName == "" {
		displayName = user.String("name")
	}

	resourceName := resource.String("name")
	if resourceName == "" {
		resourceName = resource.String("id")
	}

	body, err := d.templates.Render(TemplateUserAllowed, map[string]interface{}{
		"site_title":    d.config.SiteTitle,
		"site_url":      d.config.SiteURL,
		"user_name":     displayName,
		"resource_name": resourceName,
		"resource_link": d.resourceLink(resource),
		"resource_url":  resource.String("url"),
	})
	if err != nil {
		return fmt.Errorf("rendering mail body: %w", err)
	}

	subject := fmt.Sprintf("Access granted to resource %s", resourceName)
	if err := d.mailer.SendMail(displayName, address, subject, body); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	copyBody := fmt.Sprintf("User %s was granted access to a resource", user.String("name"))
	copyBody += "\n\n\n>> " + strings.ReplaceAll(body, "\n", "\n>> ")
	copySubject := "Fwd: " + subject
	if err := d.mailer.SendMail("Catalog Admin", d.config.AdminEmail, copySubject, copyBody); err != nil {
		return fmt.Errorf("sending admin copy: %w", err)
	}

	return nil
}

// resourceLink builds the public page URL of a resource.
func (d *Dispatcher) resourceLink(resource catalog.Record) string {
	return fmt.Sprintf("%s/dataset/%s/resource/%s",
		strings.TrimRight(d.config.SiteURL, "/"),
		resource.String("package_id"),
		resource.String("id"))
}
