package mention

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sarahID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	mikeID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	annaID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func testRoster() []models.Member {
	return []models.Member{
		{UserID: sarahID, Name: "Sarah Chen", Username: "sarahc", Role: models.RoleMember},
		{UserID: mikeID, Name: "Mike Ross", Username: "mike", Role: models.RoleAdmin},
		{UserID: annaID, Name: "Anna Lee", Username: "owner", Role: models.RoleOwner},
	}
}

func TestResolveUsername(t *testing.T) {
	res := Resolve("@sarahc welcome!", testRoster())

	assert.Equal(t, []uuid.UUID{sarahID}, res.Mentions)
	assert.False(t, res.MentionEveryone)
	assert.Empty(t, res.MentionRoles)
}

func TestResolveIsCaseInsensitiveAndFallsBackToName(t *testing.T) {
	res := Resolve("ping @SARAHC and @mikeross", testRoster())

	assert.Equal(t, []uuid.UUID{sarahID, mikeID}, res.Mentions)
}

func TestResolveUsernameBeatsName(t *testing.T) {
	roster := []models.Member{
		{UserID: sarahID, Name: "Mike", Username: "sarah"},
		{UserID: mikeID, Name: "Someone Else", Username: "mike"},
	}
	res := Resolve("@mike", roster)

	assert.Equal(t, []uuid.UUID{mikeID}, res.Mentions)
}

func TestResolveDeduplicates(t *testing.T) {
	res := Resolve("@sarahc @SarahChen @sarahc", testRoster())

	assert.Equal(t, []uuid.UUID{sarahID}, res.Mentions)
}

func TestResolveIgnoresUnknownHandles(t *testing.T) {
	res := Resolve("@nobody and @ alone", testRoster())

	assert.Empty(t, res.Mentions)
	assert.False(t, res.HasAny())
}

func TestResolveEveryone(t *testing.T) {
	res := Resolve("@[everyone] hi", testRoster())

	assert.True(t, res.MentionEveryone)
	assert.Empty(t, res.Mentions)
	assert.Empty(t, res.MentionRoles)
}

func TestResolveAdminsIncludesOwner(t *testing.T) {
	for _, text := range []string{"@[admins] check this", "@[Admin] check this"} {
		res := Resolve(text, testRoster())
		assert.ElementsMatch(t, []models.Role{models.RoleAdmin, models.RoleOwner}, res.MentionRoles, text)
		assert.False(t, res.MentionEveryone)
	}
}

func TestResolveOwnerKeyword(t *testing.T) {
	res := Resolve("@[OWNER] please approve", testRoster())

	assert.Equal(t, []models.Role{models.RoleOwner}, res.MentionRoles)
	// The roster has a user literally named "owner"; the bracket token
	// must not resolve to them.
	assert.Empty(t, res.Mentions)
}

func TestResolveMixed(t *testing.T) {
	res := Resolve("@[admins] @[owner] @[everyone] @mike @[bogus] @owner", testRoster())

	assert.True(t, res.MentionEveryone)
	assert.ElementsMatch(t, []models.Role{models.RoleAdmin, models.RoleOwner}, res.MentionRoles)
	assert.Equal(t, []uuid.UUID{mikeID, annaID}, res.Mentions)
}

func TestResolveTokenInsideWord(t *testing.T) {
	res := Resolve("mail me at sarah@sarahc.dev", testRoster())

	require.Len(t, res.Mentions, 1)
	assert.Equal(t, sarahID, res.Mentions[0])
}

func TestFilter(t *testing.T) {
	roster := testRoster()

	got := Filter("S", roster, 5)
	require.Len(t, got, 2)
	assert.Equal(t, sarahID, got[0].UserID)
	assert.Equal(t, mikeID, got[1].UserID)

	assert.Len(t, Filter("", roster, 2), 2)
	assert.Empty(t, Filter("zzz", roster, 5))
}

func TestHandle(t *testing.T) {
	assert.Equal(t, "sarahc", Handle(models.Member{Name: "Sarah Chen", Username: "sarahc"}))
	assert.Equal(t, "SarahChen", Handle(models.Member{Name: "Sarah Chen"}))
}
