package grpcx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/live"
	"github.com/cwrk-planet/attendance-service/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const mdAuthorization = "authorization"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Staff, error)
}

type Server struct {
	registrar *service.Registrar
	auth      Authenticator
	live      *live.Broadcaster
	log       *slog.Logger
}

var _ AttendanceServer = (*Server)(nil)

func NewServer(registrar *service.Registrar, auth Authenticator, b *live.Broadcaster, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{registrar: registrar, auth: auth, live: b, log: log.With("component", "grpc")}
}

// NewGRPCServer — grpc.Server с интерсепторами и keepalive под частоту heartbeat.
func NewGRPCServer(heartbeat time.Duration, log *slog.Logger) *grpc.Server {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    heartbeat,
			Timeout: heartbeat,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             heartbeat / 5,
			PermitWithoutStream: true,
		}),
	)
}

// -------- helpers --------

func (s *Server) staffFromMD(ctx context.Context) (domain.Staff, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Staff{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	// Authorization: Bearer <access_token>
	auth := first(md.Get(mdAuthorization))
	if len(auth) <= 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return domain.Staff{}, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	st, err := s.auth.Authenticate(ctx, strings.TrimSpace(auth[7:]))
	if err != nil {
		return domain.Staff{}, toStatus(err)
	}
	return st, nil
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func toStatus(err error) error {
	var already *domain.AlreadyCheckedInError
	switch {
	case errors.As(err, &already):
		return status.Error(codes.AlreadyExists, "attendance already marked at "+already.EntryTime.UTC().Format(time.RFC3339Nano))
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrAttendeeNotFound):
		return status.Error(codes.NotFound, "invalid QR code")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "system error, try again")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// toStruct — то же JSON-представление, что и в HTTP-потоке.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func attendeeMap(a domain.Attendee, at time.Time) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"email":      a.Email,
		"mobile":     a.Mobile,
		"batch":      a.Batch,
		"entry_time": at.UTC().Format(time.RFC3339Nano),
	}
}

// -------- handlers --------

func (s *Server) Scan(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if _, err := s.staffFromMD(ctx); err != nil {
		return nil, err
	}
	res, err := s.registrar.CheckIn(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"message":  "Attendance marked successfully",
		"created":  res.Created,
		"attendee": attendeeMap(res.Attendee, res.EntryTime),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	if _, err := s.staffFromMD(ctx); err != nil {
		return err
	}

	sess := s.live.Subscribe()
	defer sess.Close()

	send := func(ev live.Event) error {
		msg, err := toStruct(ev)
		if err != nil {
			return status.Error(codes.Internal, "encode event")
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
		sess.Touch()
		return nil
	}

	if err := send(live.Connected()); err != nil {
		return err
	}

	beat := time.NewTicker(s.live.Heartbeat())
	defer beat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			s.log.Info("watch ended", slog.String("session", sess.ID()), slog.Any("reason", sess.Err()))
			if errors.Is(sess.Err(), live.ErrClosed) {
				return status.Error(codes.Unavailable, "server shutting down")
			}
			return status.Error(codes.ResourceExhausted, "session dropped")
		case ev := <-sess.Events():
			if err := send(ev); err != nil {
				return err
			}
			sess.Delivered(ev.Seq)
		case <-beat.C:
			if err := send(live.Event{Type: live.TypeHeartbeat}); err != nil {
				return err
			}
		}
	}
}
