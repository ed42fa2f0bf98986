package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "0 0 9 * * *"},
		{in: "23:59", want: "0 59 23 * * *"},
		{in: " 7:05 ", want: "0 5 7 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := buildDailySpec(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("spec = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScheduler(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop())
	noop := func(context.Context) error { return nil }

	if _, err := s.ScheduleDaily("09:00", "digest", noop); err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	if _, err := s.ScheduleInterval(time.Minute, "sessions", noop); err != nil {
		t.Fatalf("ScheduleInterval: %v", err)
	}
	if _, err := s.ScheduleInterval(0, "bad", noop); err == nil {
		t.Fatalf("zero interval accepted")
	}
	if _, err := s.ScheduleDaily("9", "bad", noop); err == nil {
		t.Fatalf("bad time accepted")
	}
	if n := s.Entries(); n != 2 {
		t.Fatalf("entries = %d, want 2", n)
	}
	s.Start()
	s.Stop()
}

func TestSchedulerJobContext(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop())
	s.timeout = time.Minute

	var got context.Context
	s.wrap("probe", func(ctx context.Context) error {
		got = ctx
		return nil
	})()
	if _, ok := got.Deadline(); !ok {
		t.Fatal("job context has no deadline")
	}
	if got.Err() == nil {
		t.Fatal("job context still live after the run")
	}

	running := make(chan context.Context, 1)
	go s.wrap("long", func(ctx context.Context) error {
		running <- ctx
		<-ctx.Done()
		return ctx.Err()
	})()
	ctx := <-running
	s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}
}
