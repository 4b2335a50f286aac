package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewStoreDriverSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *DatabaseConfig
		wantErr bool
	}{
		{"default is sqlite", &DatabaseConfig{Path: ":memory:"}, false},
		{"sqlite", &DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, false},
		{"sqlite3 alias", &DatabaseConfig{Driver: "sqlite3", Path: ":memory:"}, false},
		{"modernc alias", &DatabaseConfig{Driver: "modernc", Path: ":memory:"}, false},
		{"case insensitive", &DatabaseConfig{Driver: "SQLite", Path: ":memory:"}, false},
		{"unsupported", &DatabaseConfig{Driver: "mysql"}, true},
		{"garbage", &DatabaseConfig{Driver: "not-a-driver"}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(tt.cfg)
			if tt.wantErr {
				if err == nil {
					store.Close()
					t.Fatalf("expected error for driver %q", tt.cfg.Driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			store.Close()
		})
	}
}

func TestNewSQLiteStoreFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summary.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%s): %v", path, err)
	}
	defer store.Close()

	if store.Path() != path {
		t.Errorf("Path() = %s, want %s", store.Path(), path)
	}
	tmpl := mustCreateTemplate(t, store, "T1")
	if tmpl.ID == 0 {
		t.Error("expected assigned template id")
	}
}

func TestCompleteMoves(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t1 := mustCreateTemplate(t, store, "T1")
	p := mustCreateProduct(t, store, t1.ID, "P1")
	delivery := mustCreateDelivery(t, store, "OUT/001", DeliveryTypeOutgoing)

	draft := mustCreateMove(t, store, p.ID, &delivery.ID, 2, StateDraft)
	done := mustCreateMove(t, store, p.ID, &delivery.ID, 3, StateDone)
	canceled := mustCreateMove(t, store, p.ID, &delivery.ID, 4, StateCancel)
	noDelivery := mustCreateMove(t, store, p.ID, nil, 5, StateDraft)

	moves, err := store.CompleteMoves(ctx, []int64{draft.ID, done.ID, canceled.ID, noDelivery.ID})
	if err != nil {
		t.Fatalf("CompleteMoves: %v", err)
	}
	// Only the two draft moves transition; done and cancel are terminal.
	if len(moves) != 2 {
		t.Fatalf("expected 2 transitioned moves, got %d", len(moves))
	}
	byID := map[int64]*StockMove{}
	for _, m := range moves {
		if m.State != StateDone {
			t.Errorf("move %d state = %s, want done", m.ID, m.State)
		}
		byID[m.ID] = m
	}

	withDoc, ok := byID[draft.ID]
	if !ok {
		t.Fatalf("draft move %d missing from result", draft.ID)
	}
	if withDoc.DeliveryID == nil || *withDoc.DeliveryID != delivery.ID {
		t.Errorf("move %d delivery id not populated", draft.ID)
	}
	if withDoc.DeliveryType != DeliveryTypeOutgoing {
		t.Errorf("move %d delivery type = %q, want outgoing", draft.ID, withDoc.DeliveryType)
	}
	if withDoc.TemplateID != t1.ID {
		t.Errorf("move %d template id = %d, want %d", draft.ID, withDoc.TemplateID, t1.ID)
	}

	internal, ok := byID[noDelivery.ID]
	if !ok {
		t.Fatalf("move %d missing from result", noDelivery.ID)
	}
	if internal.DeliveryID != nil || internal.DeliveryType != "" {
		t.Errorf("move without delivery reported one: %+v", *internal)
	}

	// Second call: everything is terminal now, nothing transitions.
	again, err := store.CompleteMoves(ctx, []int64{draft.ID, done.ID, canceled.ID, noDelivery.ID})
	if err != nil {
		t.Fatalf("CompleteMoves (second): %v", err)
	}
	if len(again) != 0 {
		t.Errorf("repeated completion returned %d moves, want 0", len(again))
	}
}

func TestCompleteMovesEmptyInput(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	moves, err := store.CompleteMoves(context.Background(), nil)
	if err != nil {
		t.Fatalf("CompleteMoves(nil): %v", err)
	}
	if len(moves) != 0 {
		t.Errorf("expected no moves, got %d", len(moves))
	}
}

func TestParameters(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.GetParameter(ctx, "order_summary.jwt_secret")
	if err != nil {
		t.Fatalf("GetParameter (unset): %v", err)
	}
	if value != "" {
		t.Errorf("unset parameter = %q, want empty", value)
	}

	if err := store.SetParameter(ctx, "order_summary.jwt_secret", "first-secret"); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	value, err = store.GetParameter(ctx, "order_summary.jwt_secret")
	if err != nil {
		t.Fatalf("GetParameter: %v", err)
	}
	if value != "first-secret" {
		t.Errorf("parameter = %q, want first-secret", value)
	}

	// Rotation overwrites in place.
	if err := store.SetParameter(ctx, "order_summary.jwt_secret", "rotated-secret"); err != nil {
		t.Fatalf("SetParameter (rotate): %v", err)
	}
	value, err = store.GetParameter(ctx, "order_summary.jwt_secret")
	if err != nil {
		t.Fatalf("GetParameter (rotated): %v", err)
	}
	if value != "rotated-secret" {
		t.Errorf("parameter after rotation = %q, want rotated-secret", value)
	}
}

func TestUserCredentials(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 || user.Login != "admin" {
		t.Fatalf("unexpected user: %+v", user)
	}

	got, err := store.VerifyCredentials(ctx, "admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %d, got %+v", user.ID, got)
	}

	got, err = store.VerifyCredentials(ctx, "admin", "wrong password")
	if err != nil {
		t.Fatalf("VerifyCredentials (wrong password): %v", err)
	}
	if got != nil {
		t.Error("wrong password verified")
	}

	got, err = store.VerifyCredentials(ctx, "nobody", "anything")
	if err != nil {
		t.Fatalf("VerifyCredentials (unknown login): %v", err)
	}
	if got != nil {
		t.Error("unknown login verified")
	}

	if _, err := store.CreateUser(ctx, "", "password"); err == nil {
		t.Error("CreateUser accepted empty login")
	}
	if _, err := store.CreateUser(ctx, "admin", "other"); err == nil {
		t.Error("CreateUser accepted duplicate login")
	}
}
