//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/infra/db/memory"
	"virtual-tryon/internal/usecase"
)

func TestDispatchUseCase_Submit(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	setup := func(t *testing.T, credits int) (*memory.Store, *mockEnqueuer, usecase.DispatchUseCase, func() int) {
		t.Helper()
		store := memory.New()
		if credits > 0 {
			if _, err := store.Grant(ctx, nil, "owner-1", credits); err != nil {
				t.Fatalf("Grant: %v", err)
			}
		}
		arts := newTestArtifacts()
		q := &mockEnqueuer{}
		uc := usecase.NewDispatchUseCase(store, store, arts, q, 1<<20, logger)
		return store, q, uc, arts.Len
	}

	valid := usecase.SubmitInput{
		OwnerID: "owner-1",
		Person:  usecase.Input{Data: pngBytes},
		Garment: usecase.Input{Data: jpegBytes},
		Style:   "Upper",
	}

	t.Run("should persist a pending job and hand it to the executor", func(t *testing.T) {
		store, q, uc, stored := setup(t, 3)

		job, err := uc.Submit(ctx, valid)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != model.JobStatusPending || job.Style != model.StyleUpper {
			t.Errorf("unexpected job: %+v", job)
		}
		if !model.RefOwnedBy(job.PersonRef, "owner-1") || !model.RefOwnedBy(job.GarmentRef, "owner-1") {
			t.Errorf("inputs should be stored under the owner: %s %s", job.PersonRef, job.GarmentRef)
		}
		if stored() != 2 {
			t.Errorf("expected 2 stored inputs, got %d", stored())
		}
		if len(q.IDs) != 1 || q.IDs[0] != job.ID {
			t.Errorf("expected the job to be enqueued, got %v", q.IDs)
		}
		got, err := store.FindByID(ctx, nil, job.ID)
		if err != nil || got.Status != model.JobStatusPending {
			t.Errorf("job not persisted as pending: %+v err=%v", got, err)
		}
		if b, _ := store.Balance(ctx, nil, "owner-1"); b != 3 {
			t.Errorf("admission must not debit, balance %d", b)
		}
	})

	t.Run("should keep the job pending when the queue is full", func(t *testing.T) {
		store, q, uc, _ := setup(t, 1)
		q.Full = true

		job, err := uc.Submit(ctx, valid)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got, _ := store.FindByID(ctx, nil, job.ID)
		if got.Status != model.JobStatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
	})

	t.Run("should accept references owned by the caller", func(t *testing.T) {
		_, _, uc, _ := setup(t, 2)
		first, err := uc.Submit(ctx, valid)
		if err != nil {
			t.Fatalf("first submit: %v", err)
		}
		in := valid
		in.Person = usecase.Input{Ref: first.PersonRef}
		in.Style = "lower"
		second, err := uc.Submit(ctx, in)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if second.PersonRef != first.PersonRef || second.Style != model.StyleLower {
			t.Errorf("unexpected job: %+v", second)
		}
	})

	rejections := []struct {
		name    string
		credits int
		mutate  func(in *usecase.SubmitInput)
		want    error
	}{
		{"zero balance", 0, func(in *usecase.SubmitInput) {}, domain.ErrInsufficientCredits},
		{"missing owner", 1, func(in *usecase.SubmitInput) { in.OwnerID = " " }, domain.ErrInvalidArgument},
		{"missing person", 1, func(in *usecase.SubmitInput) { in.Person = usecase.Input{} }, domain.ErrMissingInput},
		{"missing garment", 1, func(in *usecase.SubmitInput) { in.Garment = usecase.Input{Ref: "  "} }, domain.ErrMissingInput},
		{"unknown style", 1, func(in *usecase.SubmitInput) { in.Style = "full-body" }, domain.ErrInvalidStyle},
		{"not an image", 1, func(in *usecase.SubmitInput) { in.Person = usecase.Input{Data: []byte("hello")} }, domain.ErrInvalidImage},
		{"too large", 1, func(in *usecase.SubmitInput) {
			in.Garment = usecase.Input{Data: append(append([]byte{}, pngBytes...), make([]byte, 2<<20)...)}
		}, domain.ErrInvalidImage},
		{"foreign reference", 1, func(in *usecase.SubmitInput) { in.Person = usecase.Input{Ref: "owners/owner-2/x.png"} }, domain.ErrInvalidReference},
		{"dangling reference", 1, func(in *usecase.SubmitInput) { in.Person = usecase.Input{Ref: "owners/owner-1/missing.png"} }, domain.ErrInvalidReference},
	}
	for _, tc := range rejections {
		t.Run("should reject "+tc.name+" without persisting anything", func(t *testing.T) {
			store, q, uc, stored := setup(t, tc.credits)
			in := valid
			tc.mutate(&in)

			job, err := uc.Submit(ctx, in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if job != nil {
				t.Errorf("expected no job, got %+v", job)
			}
			owner := strings.TrimSpace(in.OwnerID)
			if n, _ := store.CountByOwner(ctx, nil, owner, ""); n != 0 {
				t.Errorf("expected no job rows, got %d", n)
			}
			if stored() != 0 {
				t.Errorf("expected no stored inputs, got %d", stored())
			}
			if len(q.IDs) != 0 {
				t.Errorf("expected nothing enqueued, got %v", q.IDs)
			}
		})
	}
}
