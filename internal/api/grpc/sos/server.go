package sos

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/sos-beacon/internal/domain/sos"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	SendAlert(ctx context.Context, userID string, location domain.Coordinate) (*domain.AlertReport, error)
	GetContacts(ctx context.Context, userID string) (*domain.User, error)
}

// Server implements the SOSService gRPC API.
type Server struct {
	// service provides the business logic.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// SendAlert dispatches an alert. A report in which no contact was reached is
// still a successful call; the caller inspects alertSent.
func (s *Server) SendAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	userID, location, err := DecodeAlertRequest(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	report, err := s.service.SendAlert(ctx, userID, location)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return EncodeReport(report), nil
}

// GetContacts returns the contact snapshot of a user.
func (s *Server) GetContacts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := req.GetFields()["userId"].GetStringValue()
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId is required")
	}

	user, err := s.service.GetContacts(ctx, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return EncodeUser(user), nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrNoContacts):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		logger.ErrorKV(ctx, "Request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
