package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("c1", "alice", "t1", models.RoleAdmin))
	assert.False(t, r.Register("c1", "bob", "t2", models.RoleClient))

	rec, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", rec.UserID, "second register must not overwrite")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnregisterTwiceEqualsOnce(t *testing.T) {
	once := NewRegistry()
	twice := NewRegistry()
	for _, r := range []*Registry{once, twice} {
		r.Register("c1", "alice", "t1", models.RoleAdmin)
		r.Register("c2", "bob", "t1", models.RoleAuditor)
	}

	once.Unregister("c1")
	twice.Unregister("c1")
	_, again := twice.Unregister("c1")

	assert.False(t, again)
	assert.Equal(t, once, twice)
	assert.False(t, twice.IsUserOnline("alice"))
	assert.Equal(t, []string{"bob"}, twice.OnlineUsersInTenant("t1"))
}

func TestRegistry_NoDanglingIndexes(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", "t1", models.RoleAdmin)
	r.Unregister("c1")

	assert.Equal(t, 0, r.byUser.Len())
	assert.Equal(t, 0, r.byTenant.Len())
	assert.Empty(t, r.OnlineUsersInTenant("t1"))
}

func TestRegistry_OnlineUsersDeduplicated(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", "t1", models.RoleAdmin)
	r.Register("c2", "alice", "t1", models.RoleAdmin)
	r.Register("c3", "alice", "t1", models.RoleAdmin)
	r.Register("c4", "bob", "t1", models.RoleClient)
	r.Register("c5", "carol", "t2", models.RoleClient)

	assert.Equal(t, []string{"alice", "bob"}, r.OnlineUsersInTenant("t1"))
	assert.Len(t, r.byUser.Members("alice"), 3)

	r.Unregister("c1")
	assert.True(t, r.IsUserOnline("alice"), "alice still holds two connections")
}

func TestTopic_Roundtrip(t *testing.T) {
	tests := []struct {
		topic Topic
		want  string
	}{
		{UserTopic("u1"), "user:u1"},
		{TenantTopic("t1"), "tenant:t1"},
		{EntityTopic(models.EntityFinding, "f1"), "finding:f1"},
		{EntityTopic(models.EntityReport, "r1"), "report:r1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.String())
			parsed, ok := ParseTopic(tt.want)
			require.True(t, ok)
			assert.Equal(t, tt.topic, parsed)
		})
	}

	for _, bad := range []string{"", "user:", "comment:1", "nocolon"} {
		_, ok := ParseTopic(bad)
		assert.False(t, ok, bad)
	}
}
