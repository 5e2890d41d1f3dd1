package contracts

import (
	"strings"

	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/pkg/errors"
)

// Status is the gateway's name for a contract status
type Status string

// Contract statuses
const (
	StatusDraft      Status = "DRAFT"
	StatusApproved   Status = "APPROVED"
	StatusOnHold     Status = "ON_HOLD"
	StatusTerminated Status = "TERMINATED"
)

var backendStatus = map[Status]string{
	StatusDraft:      models.ContractStatusDraft,
	StatusApproved:   models.ContractStatusApproved,
	StatusOnHold:     models.ContractStatusOnHold,
	StatusTerminated: models.ContractStatusTerminated,
}

// ParseStatus accepts a status name in any case, with a space or hyphen in place of the underscore
func ParseStatus(s string) (Status, error) {
	normalised := Status(strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(s))))
	if _, ok := backendStatus[normalised]; !ok {
		return "", errors.Errorf("unknown contract status %q", s)
	}
	return normalised, nil
}

// Backend returns the backend enum literal of the status
func (s Status) Backend() string {
	return backendStatus[s]
}

// statusOf maps a backend literal to its status. Unknown literals pass through unchanged.
func statusOf(literal string) Status {
	for status, backend := range backendStatus {
		if backend == literal {
			return status
		}
	}
	return Status(literal)
}
