package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/outbox"
	"github.com/matheus3301/imsg/internal/status"
	intsync "github.com/matheus3301/imsg/internal/sync"
)

// Snapshotter exposes the sync loop's last published state.
type Snapshotter interface {
	Snapshot() intsync.Snapshot
}

// ThreadSource builds a thread for any conversation, selected or not.
type ThreadSource interface {
	Build(ctx context.Context, id conversation.ID, otherServices bool) (conversation.Thread, error)
}

// Messenger delivers a message and waits for the outcome.
type Messenger interface {
	SendWait(ctx context.Context, to conversation.ID, body string) (string, error)
}

// Names is the contact name cache. ResolveNow answers a lookup within the
// caller's deadline.
type Names interface {
	conversation.Names
	ResolveNow(ctx context.Context, id string) (string, bool)
}

// ControlService implements ControlServer on top of the running client.
type ControlService struct {
	loop      Snapshotter
	threads   ThreadSource
	messenger Messenger
	machine   *status.Machine
	names     Names
	dbPath    string
	startedAt time.Time
}

func NewControlService(loop Snapshotter, threads ThreadSource, messenger Messenger, machine *status.Machine, dbPath string) *ControlService {
	return &ControlService{
		loop:      loop,
		threads:   threads,
		messenger: messenger,
		machine:   machine,
		dbPath:    dbPath,
		startedAt: time.Now(),
	}
}

// WithNames makes responses carry contact names resolved since the
// snapshot was taken.
func (s *ControlService) WithNames(names Names) *ControlService {
	s.names = names
	return s
}

func (s *ControlService) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.loop.Snapshot()
	fields := map[string]any{
		"state":               string(s.machine.Current()),
		"chat_db":             s.dbPath,
		"last_seen_max_rowid": float64(snap.State.LastSeenMaxRowID),
		"other_services":      snap.State.OtherServices,
		"conversations":       float64(len(snap.Conversations)),
		"uptime_ms":           float64(time.Since(s.startedAt).Milliseconds()),
	}
	if !snap.State.Active.IsZero() {
		fields["active"] = snap.State.Active.Key()
	}
	if !snap.CheckedAt.IsZero() {
		fields["checked_at"] = snap.CheckedAt.UTC().Format(time.RFC3339)
	}
	return toStruct(fields)
}

func (s *ControlService) ListConversations(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entries := s.loop.Snapshot().Conversations
	if s.names != nil {
		entries = conversation.Relabel(entries, s.names)
	}
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, entryToValue(e))
	}
	return toStruct(map[string]any{"conversations": list})
}

func (s *ControlService) GetThread(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	key := strings.TrimSpace(req.GetValue())
	if key == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "conversation key is required")
	}
	snap := s.loop.Snapshot()
	id := conversation.ParseKey(key, snap.Conversations)

	var thread conversation.Thread
	if snap.State.Active == id && len(snap.Thread.Lines) > 0 {
		thread = snap.Thread
	} else {
		var err error
		thread, err = s.threads.Build(ctx, id, snap.State.OtherServices)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "build thread: %v", err)
		}
	}
	if s.names != nil {
		thread = thread.Relabel(s.names)
	}

	lines := make([]any, 0, len(thread.Lines))
	for _, l := range thread.Lines {
		lines = append(lines, lineToValue(l))
	}
	return toStruct(map[string]any{
		"key":      id.Key(),
		"label":    s.label(ctx, id, snap.Conversations),
		"is_group": id.IsGroup(),
		"lines":    lines,
	})
}

// label names a conversation the way the list does. A handle is looked up
// in the address book when the cache does not know it yet.
func (s *ControlService) label(ctx context.Context, id conversation.ID, known []conversation.Entry) string {
	if !id.IsGroup() && s.names != nil {
		if name, ok := s.names.ResolveNow(ctx, id.Target()); ok {
			return name
		}
	}
	for _, e := range known {
		if e.ID == id {
			return e.Label
		}
	}
	return id.Key()
}

func (s *ControlService) SendMessage(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()
	to := strings.TrimSpace(fields["to"].GetStringValue())
	body := fields["body"].GetStringValue()
	if to == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "recipient is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message body is empty")
	}

	id := conversation.ParseKey(to, s.loop.Snapshot().Conversations)
	reqID, err := s.messenger.SendWait(ctx, id, body)
	switch {
	case errors.Is(err, outbox.ErrBusy):
		return nil, grpcstatus.Error(codes.ResourceExhausted, err.Error())
	case err != nil:
		return nil, grpcstatus.Errorf(codes.Unavailable, "send message: %v", err)
	}
	return wrapperspb.String(reqID), nil
}

func entryToValue(e conversation.Entry) map[string]any {
	v := map[string]any{
		"key":      e.ID.Key(),
		"label":    e.Label,
		"is_group": e.ID.IsGroup(),
	}
	if !e.LastActivity.IsZero() {
		v["last_activity"] = e.LastActivity.UTC().Format(time.RFC3339)
	}
	return v
}

func lineToValue(l conversation.Line) map[string]any {
	v := map[string]any{
		"rowid":  float64(l.RowID),
		"sender": l.Sender,
		"body":   l.Body,
	}
	if l.SenderHandle != "" {
		v["handle"] = l.SenderHandle
	}
	if !l.Time.IsZero() {
		v["time"] = l.Time.UTC().Format(time.RFC3339)
	}
	return v
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}
