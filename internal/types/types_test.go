package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResume() Resume {
	return Resume{
		Contact: ContactInfo{Name: "Jane Doe", Email: "jane@example.com"},
		Experience: []Experience{
			{ID: "exp-1", Company: "Acme", Description: []string{"Built things"}},
			{ID: "exp-2", Company: "Globex", Description: []string{"Shipped things"}},
		},
		Education: []Education{{ID: "edu-1", Institution: "State U", Achievements: []string{"Dean's list"}}},
		Skills:    []Skill{{Category: "Languages", Items: []string{"Go"}}},
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewExperienceID()
		require.True(t, strings.HasPrefix(id, "exp-"))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.True(t, strings.HasPrefix(NewEducationID(), "edu-"))
	assert.NotEqual(t, NewEducation().ID, NewEducation().ID)
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := sampleResume()
	clone := orig.Clone()

	clone.Experience[0].Description[0] = "changed"
	clone.Education[0].Achievements[0] = "changed"
	clone.Skills[0].Items[0] = "Rust"
	clone.Contact.Name = "Someone Else"

	assert.Equal(t, "Built things", orig.Experience[0].Description[0])
	assert.Equal(t, "Dean's list", orig.Education[0].Achievements[0])
	assert.Equal(t, "Go", orig.Skills[0].Items[0])
	assert.Equal(t, "Jane Doe", orig.Contact.Name)
}

func TestRemoveExperienceKeepsOtherIDs(t *testing.T) {
	r := sampleResume()

	assert.True(t, r.RemoveExperience("exp-1"))
	require.Len(t, r.Experience, 1)
	assert.Equal(t, "exp-2", r.Experience[0].ID)

	assert.False(t, r.RemoveExperience("exp-missing"))
	assert.True(t, r.RemoveEducation("edu-1"))
	assert.Empty(t, r.Education)
}

func TestEnsureIDs(t *testing.T) {
	r := Resume{
		Experience: []Experience{{Company: "Acme"}, {ID: "exp-keep"}},
		Education:  []Education{{Institution: "State U"}},
	}
	r.EnsureIDs()

	assert.True(t, strings.HasPrefix(r.Experience[0].ID, "exp-"))
	assert.Equal(t, "exp-keep", r.Experience[1].ID)
	assert.True(t, strings.HasPrefix(r.Education[0].ID, "edu-"))
}

func TestMissingListsMarshalAsArrays(t *testing.T) {
	var r Resume
	require.NoError(t, json.Unmarshal([]byte(`{"contact":{"name":"Alex"},"experience":[{"company":"Acme"}],"skills":[{"category":"Go"}]}`), &r))
	require.Nil(t, r.Experience[0].Description)
	require.Nil(t, r.Skills[0].Items)

	cloned, err := json.Marshal(r.Clone())
	require.NoError(t, err)
	assert.NotContains(t, string(cloned), "null")

	r.EnsureIDs()
	normalized, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(normalized), "null")
	assert.Contains(t, string(normalized), `"description":[]`)
	assert.Contains(t, string(normalized), `"items":[]`)
	assert.Contains(t, string(normalized), `"education":[]`)
}

func TestMergeSkills(t *testing.T) {
	var r Resume
	r.MergeSkills("Languages", "Go")
	r.MergeSkills("languages", "Python")
	r.MergeSkills("Tools", "Docker")
	r.MergeSkills("", "ignored")
	r.MergeSkills("Empty")

	require.Len(t, r.Skills, 2)
	assert.Equal(t, []string{"Go", "Python"}, r.Skills[0].Items)
	assert.Equal(t, "Languages", r.Skills[0].Category)
	assert.Equal(t, "Tools", r.Skills[1].Category)
}

func TestCoverLetterText(t *testing.T) {
	letter := CoverLetter{
		Greeting:  "Dear Hiring Manager,",
		Opening:   "I am applying.",
		Body:      []string{"First.", "Second."},
		Closing:   "Thank you.",
		Signature: "Jane Doe",
	}

	want := "Dear Hiring Manager,\n\nI am applying.\n\nFirst.\n\nSecond.\n\nThank you.\n\nJane Doe"
	assert.Equal(t, want, letter.Text())
}
