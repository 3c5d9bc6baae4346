package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/quotaledger/internal/events/liveevents"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

type ListEventsRequest struct {
	pagination.Pagination
	ConcessionID string
	Kind         string
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []Event `json:"events"`
}

type Service interface {
	List(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)
	Subscribe(concessionID string) (*liveevents.Subscription, []liveevents.LiveEvent, error)
}

var ErrInvalidConcession = errors.New("invalid_concession")
