// Package rpc exposes the assessment over gRPC and multiplexes it with the
// HTTP API on one listener.
//
// Messages are google.protobuf.Struct values carrying the same JSON shapes
// the HTTP API returns, so the service needs no generated code. The session
// token travels in the "x-session-token" metadata key.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/api"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "assessment.v1.Assessment"

// TokenMetadataKey carries the session token.
const TokenMetadataKey = "x-session-token"

// AssessmentServer is the server API for the assessment service.
type AssessmentServer interface {
	ListQuestions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Start(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CurrentQuestion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SubmitAnswer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetPrediction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv AssessmentServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts one AssessmentServer method to a grpc.MethodHandler.
func unary(method string, call func(AssessmentServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AssessmentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AssessmentServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssessmentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListQuestions", AssessmentServer.ListQuestions),
		unary("CreateSession", AssessmentServer.CreateSession),
		unary("Start", AssessmentServer.Start),
		unary("CurrentQuestion", AssessmentServer.CurrentQuestion),
		unary("SubmitAnswer", AssessmentServer.SubmitAnswer),
		unary("GetPrediction", AssessmentServer.GetPrediction),
	},
	Streams: []grpc.StreamDesc{},
}

// ─── SERVER ──────────────────────────────────────────────────────────────────

// Server implements AssessmentServer on top of the same Assessor the HTTP
// API uses.
type Server struct {
	svc    api.Assessor
	logger *slog.Logger
}

// NewServer returns a Server for svc.
func NewServer(svc api.Assessor, logger *slog.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

func (s *Server) ListQuestions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	qs := s.svc.Catalog()
	return toStruct(map[string]any{"questions": qs, "total": len(qs)})
}

func (s *Server) CreateSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.svc.Create(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(map[string]any{"session_id": sess.ID.String(), "token": sess.Token})
}

func (s *Server) Start(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	v, err := s.svc.Start(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(v)
}

func (s *Server) CurrentQuestion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	v, err := s.svc.Current(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(v)
}

func (s *Server) SubmitAnswer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	fields := in.GetFields()
	v, err := s.svc.Submit(ctx, id, fields["question_id"].GetStringValue(), fields["answer"].GetStringValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(v)
}

func (s *Server) GetPrediction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.authorize(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Predict(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return toStruct(res)
}

// authorize reads session_id from the request and the token from metadata.
func (s *Server) authorize(ctx context.Context, in *structpb.Struct) (uuid.UUID, error) {
	id, err := uuid.Parse(in.GetFields()["session_id"].GetStringValue())
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid session_id")
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(TokenMetadataKey); len(vals) > 0 {
			token = vals[0]
		}
	}
	if token == "" {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing "+TokenMetadataKey+" metadata")
	}

	if err := s.svc.Authorize(ctx, id, token); err != nil {
		return uuid.Nil, s.toStatus(ctx, err)
	}
	return id, nil
}

// toStatus maps service errors to gRPC status codes. Unexpected errors are
// logged and returned as Internal without detail.
func (s *Server) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "session not found; start a new assessment")
	case errors.Is(err, assessment.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, "token does not match session")
	case errors.Is(err, questionnaire.ErrNotStarted):
		return status.Error(codes.FailedPrecondition, "assessment not started")
	case errors.Is(err, questionnaire.ErrComplete):
		return status.Error(codes.FailedPrecondition, "assessment already complete")
	case errors.Is(err, assessment.ErrNotComplete):
		return status.Error(codes.FailedPrecondition, "answer every question before requesting a prediction")
	case errors.Is(err, questionnaire.ErrStaleAnswer):
		return status.Error(codes.Aborted, "answer does not match the current question")
	case errors.Is(err, assessment.ErrPredictionFailed):
		return status.Error(codes.Unavailable, assessment.PredictionFailedMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}
	s.logger.ErrorContext(ctx, "rpc: internal error", "error", err)
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts v to a Struct through its JSON encoding, so gRPC and
// HTTP clients see identical field names.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
