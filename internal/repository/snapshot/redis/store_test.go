package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/commentlens/internal/db"
	dbredis "github.com/kailas-cloud/commentlens/internal/db/redis"
	"github.com/kailas-cloud/commentlens/internal/domain"
)

func TestStore_LoadMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", DefaultKey)).
		Return(mock.Result(mock.RedisNil()))

	s := New(dbredis.NewStoreForTest(c), "")
	if _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestStore_LoadSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "custom")).
		Return(mock.Result(mock.RedisString("blob")))

	s := New(dbredis.NewStoreForTest(c), "custom")
	data, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "blob" {
		t.Errorf("expected blob, got %q", data)
	}
}

func TestStore_LoadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", DefaultKey)).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := New(dbredis.NewStoreForTest(c), "")
	_, err := s.Load(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpGet {
		t.Fatalf("expected db.Error{Op: GET}, got %v", err)
	}
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Error("transport error must not look like a missing snapshot")
	}
}

func TestStore_SaveAndRemove(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", DefaultKey, "payload")).
		Return(mock.Result(mock.RedisString("OK")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", DefaultKey)).
		Return(mock.Result(mock.RedisInt64(1)))

	s := New(dbredis.NewStoreForTest(c), "")
	if err := s.Save(context.Background(), []byte("payload")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Remove(context.Background()); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
