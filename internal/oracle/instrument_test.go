package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/chembench/server/pkg/lab"
)

type fakeOracle struct {
	err error
}

func (f *fakeOracle) GenerateExperiment(context.Context, ExperimentRequest) (*lab.Experiment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &lab.Experiment{Title: "Distillation"}, nil
}

func (f *fakeOracle) JudgeLayout(context.Context, LayoutRequest) (lab.Verdict, error) {
	if f.err != nil {
		return lab.Verdict{}, f.err
	}
	return lab.Verdict{IsCorrect: true}, nil
}

func (f *fakeOracle) Chat(context.Context, ChatRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "reply", nil
}

func (f *fakeOracle) EditImage(context.Context, ImageEditRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64,aW1n", nil
}

type observedCall struct {
	operation string
	success   bool
}

func TestInstrumented_CallObserver(t *testing.T) {
	fake := &fakeOracle{}
	inst, err := Instrument(fake, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}

	var observed []observedCall
	inst.SetCallObserver(func(operation string, durationMS int64, success bool) {
		if durationMS < 0 {
			t.Errorf("negative duration for %s", operation)
		}
		observed = append(observed, observedCall{operation, success})
	})

	if _, err := inst.Chat(context.Background(), ChatRequest{Message: "hi"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	fake.err = errors.New("oracle returned status 500")
	if _, err := inst.JudgeLayout(context.Background(), LayoutRequest{}); err == nil {
		t.Fatal("expected JudgeLayout error")
	}

	want := []observedCall{
		{"chat", true},
		{"judge_layout", false},
	}
	if len(observed) != len(want) {
		t.Fatalf("observed %d calls, want %d", len(observed), len(want))
	}
	for i, w := range want {
		if observed[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, observed[i], w)
		}
	}
}

func TestInstrumented_NoObserverIsFine(t *testing.T) {
	inst, err := Instrument(&fakeOracle{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if _, err := inst.GenerateExperiment(context.Background(), ExperimentRequest{Topic: "salts"}); err != nil {
		t.Fatalf("GenerateExperiment: %v", err)
	}
}
