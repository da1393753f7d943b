package model

import "testing"

func TestGroupSubscriptionsByTenant(t *testing.T) {
	tests := []struct {
		name string
		subs []Subscription
		want map[string][]string
	}{
		{
			name: "empty input",
			subs: nil,
			want: map[string][]string{},
		},
		{
			name: "single tenant",
			subs: []Subscription{
				{ID: "sub-1", TenantID: "ten-1"},
				{ID: "sub-2", TenantID: "ten-1"},
			},
			want: map[string][]string{"ten-1": {"sub-1", "sub-2"}},
		},
		{
			// Three tenants with two, one, and zero subscriptions: only the
			// non-empty tenants get a bucket.
			name: "tenant without subscriptions has no bucket",
			subs: []Subscription{
				{ID: "sub-1", TenantID: "ten-1"},
				{ID: "sub-2", TenantID: "ten-2"},
				{ID: "sub-3", TenantID: "ten-1"},
			},
			want: map[string][]string{
				"ten-1": {"sub-1", "sub-3"},
				"ten-2": {"sub-2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := GroupSubscriptionsByTenant(tt.subs)
			if len(groups) != len(tt.want) {
				t.Fatalf("got %d groups, want %d", len(groups), len(tt.want))
			}
			for tenant, wantIDs := range tt.want {
				got := groups[tenant]
				if len(got) != len(wantIDs) {
					t.Fatalf("tenant %q: got %d subscriptions, want %d", tenant, len(got), len(wantIDs))
				}
				// Input order is preserved within each bucket.
				for i, id := range wantIDs {
					if got[i].ID != id {
						t.Errorf("tenant %q[%d] = %q, want %q", tenant, i, got[i].ID, id)
					}
				}
			}
		})
	}
}

func TestSnapshotGroupsSubscriptions(t *testing.T) {
	s := &DialogSession{
		ID:      "s-1",
		Profile: NewConnectionProfile(),
		Schema:  &FormSchema{Fields: map[string]*FieldSpec{}},
		Subscriptions: []Subscription{
			{ID: "sub-1", TenantID: "ten-1"},
			{ID: "sub-2", TenantID: "ten-2"},
		},
	}

	snap := s.Snapshot()
	if len(snap.SubscriptionsByTenant) != 2 {
		t.Fatalf("SubscriptionsByTenant has %d groups, want 2", len(snap.SubscriptionsByTenant))
	}
	if got := snap.SubscriptionsByTenant["ten-1"]; len(got) != 1 || got[0].ID != "sub-1" {
		t.Errorf("ten-1 group = %+v, want [sub-1]", got)
	}
}
