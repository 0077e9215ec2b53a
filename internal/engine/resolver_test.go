package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"simulacra-server/internal/config"
	"simulacra-server/internal/domain"
	"simulacra-server/internal/memory"
	"simulacra-server/internal/oracle"
	"simulacra-server/internal/storage/storagetest"
	"simulacra-server/pkg/api"
)

type oracleFunc func(ctx context.Context, req oracle.Request) (*domain.Decision, error)

func (f oracleFunc) Decide(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
	return f(ctx, req)
}

func newResolver(t *testing.T, store *storagetest.Fake, decide oracleFunc) (*Resolver, *recordingHub) {
	t.Helper()
	hub := &recordingHub{}
	mem := memory.NewService(store, config.Default().Memory)
	eng, err := NewEngine(context.Background(), "w1", store, mem, hub)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return NewResolver(eng, store, mem, decide), hub
}

func speakDecision(t *testing.T, message string, volume float64) *domain.Decision {
	t.Helper()
	params, err := json.Marshal(api.SpeakPayload{Message: message, Volume: volume})
	if err != nil {
		t.Fatal(err)
	}
	return &domain.Decision{Kind: domain.ActionSpeak, Params: params, Reasoning: "sounded right"}
}

// lastCharacterError достает параметры последнего characterError из журнала
func lastCharacterError(t *testing.T, store *storagetest.Fake) (domain.GameEvent, domain.CharacterErrorParams) {
	t.Helper()
	evs := store.EventsOfKind(domain.EventCharacterError)
	if len(evs) == 0 {
		t.Fatal("no characterError event recorded")
	}
	ev := evs[len(evs)-1]
	return ev, ev.Params.(domain.CharacterErrorParams)
}

func memoryContaining(store *storagetest.Fake, fragment string) (domain.CharacterMemory, bool) {
	for _, m := range store.Memories() {
		if strings.Contains(m.MemoryText, fragment) {
			return m, true
		}
	}
	return domain.CharacterMemory{}, false
}

func TestProcessCommand_RunsDecision(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)

	var asked *oracle.Request
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		asked = &req
		return speakDecision(t, "hi there", 5), nil
	})

	if err := res.ProcessCommand(context.Background(), "alice", "greet the room", ""); err != nil {
		t.Fatalf("ProcessCommand failed: %v", err)
	}

	// Аудит первым, затем событие решения; слушателей нет - каскада нет
	got := storedKinds(store)
	if len(got) != 2 || got[0] != "userCommand" || got[1] != "speak" {
		t.Fatalf("stored events = %v, want [userCommand speak]", got)
	}

	uc := store.Events()[0].Params.(domain.UserCommandParams)
	if uc.Text != "greet the room" || uc.Source != domain.CommandSourceUser {
		t.Errorf("audit params = %+v", uc)
	}

	if asked == nil {
		t.Fatal("oracle was not consulted")
	}
	if asked.ActorID != "alice" || asked.WorldID != "w1" {
		t.Errorf("oracle request addressed to %s/%s", asked.WorldID, asked.ActorID)
	}
	if asked.Context.Instruction != "greet the room" {
		t.Errorf("instruction = %q", asked.Context.Instruction)
	}
	if !strings.Contains(asked.Context.Status, "alice") {
		t.Errorf("status line = %q", asked.Context.Status)
	}

	m, ok := memoryContaining(store, `Was told "greet the room" and decided to speak`)
	if !ok {
		t.Fatal("decision memory not recorded")
	}
	speakID := store.Events()[1].ID
	if len(m.RelatedEventIDs) != 1 || m.RelatedEventIDs[0] != speakID {
		t.Errorf("related ids = %v, want [%s]", m.RelatedEventIDs, speakID)
	}
}

func TestProcessCommand_DecisionCascades(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	seedEntity(t, store, "bob", 3, 0, 0)

	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return speakDecision(t, "dinner is ready", 5), nil
	})

	if err := res.ProcessCommand(context.Background(), "alice", "call everyone", ""); err != nil {
		t.Fatal(err)
	}

	got := storedKinds(store)
	want := []string{"userCommand", "speak", "heard"}
	if len(got) != len(want) {
		t.Fatalf("stored events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stored events = %v, want %v", got, want)
		}
	}
	if heard := store.EventsOfKind(domain.EventHeard); heard[0].ActorID != "bob" {
		t.Errorf("heard addressed to %s, want bob", heard[0].ActorID)
	}
}

func TestProcessCommand_PreservesSource(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return nil, nil
	})

	if err := res.ProcessCommand(context.Background(), "alice", "ping", domain.CommandSourceAgent); err != nil {
		t.Fatal(err)
	}

	uc := store.EventsOfKind(domain.EventUserCommand)[0].Params.(domain.UserCommandParams)
	if uc.Source != domain.CommandSourceAgent {
		t.Errorf("source = %q, want agent", uc.Source)
	}
}

func TestProcessCommand_NoDecision(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return nil, nil
	})

	if err := res.ProcessCommand(context.Background(), "alice", "fly to the moon", ""); err != nil {
		t.Fatalf("no-decision path must not error: %v", err)
	}

	got := storedKinds(store)
	if len(got) != 2 || got[0] != "userCommand" || got[1] != "characterError" {
		t.Fatalf("stored events = %v, want [userCommand characterError]", got)
	}
	_, ce := lastCharacterError(t, store)
	if ce.Severity != domain.SeverityLow {
		t.Errorf("severity = %v, want low", ce.Severity)
	}
	if _, ok := memoryContaining(store, "found nothing actionable"); !ok {
		t.Error("no-decision memory not recorded")
	}
}

func TestProcessCommand_OracleFailure(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return nil, domain.NewOracleError("decision request failed", errors.New("connection refused"))
	})

	if err := res.ProcessCommand(context.Background(), "alice", "say hi", ""); err != nil {
		t.Fatalf("oracle failure must be absorbed: %v", err)
	}

	ev, ce := lastCharacterError(t, store)
	if ev.ActorID != "alice" {
		t.Errorf("characterError addressed to %s", ev.ActorID)
	}
	if ce.Severity != domain.SeverityHigh {
		t.Errorf("severity = %v, want high for oracle failure", ce.Severity)
	}
	if _, ok := memoryContaining(store, `Got confused trying to act on "say hi"`); !ok {
		t.Error("confusion memory not recorded")
	}
}

func TestProcessCommand_InvalidDecisionParams(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return speakDecision(t, "", 5), nil // пустая фраза не проходит валидацию
	})

	if err := res.ProcessCommand(context.Background(), "alice", "say nothing", ""); err != nil {
		t.Fatalf("validation failure must be absorbed: %v", err)
	}

	_, ce := lastCharacterError(t, store)
	if ce.Severity != domain.SeverityLow {
		t.Errorf("severity = %v, want low for validation error", ce.Severity)
	}
	if speaks := store.EventsOfKind(domain.EventSpeak); len(speaks) != 0 {
		t.Error("rejected decision still produced a speak event")
	}
}

func TestProcessCommand_UnknownDecisionKind(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return &domain.Decision{Kind: domain.ActionUnknown}, nil
	})

	if err := res.ProcessCommand(context.Background(), "alice", "do something", ""); err != nil {
		t.Fatal(err)
	}

	_, ce := lastCharacterError(t, store)
	if ce.Severity != domain.SeverityMedium {
		t.Errorf("severity = %v, want medium for unroutable decision", ce.Severity)
	}
	if !strings.Contains(ce.Message, "no handler for decision kind") {
		t.Errorf("message = %q", ce.Message)
	}
}

func TestProcessCommand_UnknownActor(t *testing.T) {
	store := storagetest.New()
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		t.Error("oracle consulted for an entity outside the world")
		return nil, nil
	})

	if err := res.ProcessCommand(context.Background(), "ghost", "boo", ""); err != nil {
		t.Fatal(err)
	}

	ev, ce := lastCharacterError(t, store)
	if ev.ActorID != "ghost" {
		t.Errorf("characterError addressed to %s, want ghost", ev.ActorID)
	}
	if ce.Severity != domain.SeverityMedium {
		t.Errorf("severity = %v, want medium", ce.Severity)
	}
}

func TestProcessCommand_PersistenceFailurePropagates(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return speakDecision(t, "hi", 5), nil
	})
	store.AppendEventErr = domain.NewPersistenceError("append event", errors.New("disk full"))

	err := res.ProcessCommand(context.Background(), "alice", "say hi", "")
	if !domain.IsPersistence(err) {
		t.Fatalf("err = %v, want persistence error to propagate", err)
	}
	if n := len(store.Events()); n != 0 {
		t.Errorf("stored events = %d, want 0", n)
	}
	if n := len(store.Memories()); n != 0 {
		t.Errorf("memories = %d, want 0", n)
	}
}

func TestProcessCommand_FailureIsolatedPerActor(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	seedEntity(t, store, "bob", 1, 0, 0)

	calls := 0
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		calls++
		if req.ActorID == "alice" {
			return nil, domain.NewOracleError("decision request failed", errors.New("boom"))
		}
		return speakDecision(t, "still here", 5), nil
	})
	ctx := context.Background()

	if err := res.ProcessCommand(ctx, "alice", "say hi", ""); err != nil {
		t.Fatalf("alice's failure leaked: %v", err)
	}
	if err := res.ProcessCommand(ctx, "bob", "say something", ""); err != nil {
		t.Fatalf("bob blocked by alice's failure: %v", err)
	}

	if calls != 2 {
		t.Errorf("oracle calls = %d, want 2", calls)
	}
	speaks := store.EventsOfKind(domain.EventSpeak)
	if len(speaks) != 1 || speaks[0].ActorID != "bob" {
		t.Errorf("speak events = %+v, want exactly bob's", speaks)
	}
}

func TestHandleEvent_CheckTasksIdle(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)

	consulted := false
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		consulted = true
		return nil, nil
	})

	ev := domain.NewEvent(domain.EventCheckTasks, "alice", "w1", domain.CheckTasksParams{Reason: "idle"})
	if err := res.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	got := storedKinds(store)
	if len(got) != 1 || got[0] != "checkTasks" {
		t.Fatalf("stored events = %v, want [checkTasks]", got)
	}
	if consulted {
		t.Error("oracle consulted though nothing was noteworthy")
	}
	if _, ok := memoryContaining(store, "Observed nothing noteworthy"); !ok {
		t.Error("idle observation not recorded")
	}
}

func TestHandleEvent_CheckTasksRunsDecision(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	seedEntity(t, store, "bob", 2, 0, 0)
	ctx := context.Background()

	task := domain.NewScheduledTask("alice", "w1", "report in every so often", 10)
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	var instruction string
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		instruction = req.Context.Instruction
		return speakDecision(t, "all quiet", 5), nil
	})

	ev := domain.NewEvent(domain.EventCheckTasks, "alice", "w1", domain.CheckTasksParams{
		Reason: "scheduled task",
		TaskID: task.ID,
	})
	if err := res.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if !strings.Contains(instruction, "report in every so often (due now)") {
		t.Errorf("instruction = %q, want due task listed first", instruction)
	}

	got := storedKinds(store)
	want := []string{"checkTasks", "speak", "heard"}
	if len(got) != len(want) {
		t.Fatalf("stored events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stored events = %v, want %v", got, want)
		}
	}
	if _, ok := memoryContaining(store, "decided to speak"); !ok {
		t.Error("decision memory not recorded")
	}
}

func TestHandleEvent_UnroutableKind(t *testing.T) {
	store := storagetest.New()
	seedEntity(t, store, "alice", 0, 0, 0)
	res, _ := newResolver(t, store, func(ctx context.Context, req oracle.Request) (*domain.Decision, error) {
		return nil, nil
	})

	ev := domain.NewEvent(domain.EventHeard, "alice", "w1", domain.HeardParams{
		SpeakerID: "bob", Message: "psst", Distance: 1,
	})
	if err := res.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	got := storedKinds(store)
	if len(got) != 2 || got[0] != "heard" || got[1] != "characterError" {
		t.Fatalf("stored events = %v, want [heard characterError]", got)
	}
	_, ce := lastCharacterError(t, store)
	if ce.Severity != domain.SeverityMedium {
		t.Errorf("severity = %v, want medium", ce.Severity)
	}
}

