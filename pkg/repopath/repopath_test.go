package repopath

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/dshills/flowsync/pkg/domain/types"
	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		entity   string
		id       string
		project  *ProjectRef
		expected string
	}{
		{"flow in project", "Greeter", "f1", &ProjectRef{ID: "p1", Name: "Demo"}, "Demo[p1]/Greeter[f1].json"},
		{"flow without project", "Greeter", "f1", nil, "_no_project/Greeter[f1].json"},
		{"name with separator", "a/b", "f2", nil, "_no_project/a_b[f2].json"},
		{"name with brackets", "x[1]", "f3", &ProjectRef{ID: "p1", Name: "Pro]ject"}, "Pro_ject[p1]/x_1_[f3].json"},
		{"blank name", "  ", "f4", nil, "_no_project/Unnamed[f4].json"},
		{"spaces preserved", "My Flow", "f5", nil, "_no_project/My Flow[f5].json"},
		{"uuid ids", "Chat", "3fa85f64-5717-4562-b3fc-2c963f66afa6", nil, "_no_project/Chat[3fa85f64-5717-4562-b3fc-2c963f66afa6].json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(tt.entity, tt.id, tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.String())
		})
	}
}

func TestEncodeRejectsUnroundtrippableIDs(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		project *ProjectRef
	}{
		{"empty id", "", nil},
		{"blank id", "   ", nil},
		{"id with slash", "a/b", nil},
		{"id with bracket", "a[b", nil},
		{"blank project id", "f1", &ProjectRef{ID: " ", Name: "Demo"}},
		{"project id with bracket", "f1", &ProjectRef{ID: "p]1", Name: "Demo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode("Name", tt.id, tt.project)
			require.Error(t, err)
			assert.True(t, errors.Is(err, flowerrors.ErrInvalidIdentity))
		})
	}
}

func TestEncodeProject(t *testing.T) {
	p, err := EncodeProject(&types.Project{ID: "p1", Name: "Demo"})
	require.NoError(t, err)
	assert.Equal(t, "Demo[p1]/Demo[p1].json", p.String())
}

func TestDecode(t *testing.T) {
	p, err := Decode("Demo[p1]/Greeter[f1].json")
	require.NoError(t, err)
	assert.Equal(t, Path{ProjectName: "Demo", ProjectID: "p1", Name: "Greeter", ID: "f1"}, p)
	assert.True(t, p.HasProject())

	p, err = Decode("_no_project/Greeter[f1].json")
	require.NoError(t, err)
	assert.False(t, p.HasProject())
	assert.Equal(t, "Greeter", p.Name)
	assert.Equal(t, "f1", p.ID)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []string{
		"",
		"Greeter[f1].json",
		"projects/Demo[p1]/Greeter[f1].json",
		"Demo/Greeter[f1].json",
		"Demo[p1]/Greeter[f1].yaml",
		"Demo[p1]/Greeter.json",
		"Demo[p1]/Greeter[].json",
		"Demo[p1]/Gre[et]er[f1].json",
		"Demo[p1]/Greeter[f1]x.json",
		"Demo[[p1]]/Greeter[f1].json",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, flowerrors.ErrMalformedPath))
			assert.Contains(t, err.Error(), raw)
		})
	}
}

func TestRoundTripSafeAlphabet(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 -_.()"
	rng := rand.New(rand.NewSource(42))
	word := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(b)
	}

	for i := 0; i < 500; i++ {
		name := "n" + word(rng.Intn(20))
		id := fmt.Sprintf("id-%d-%s", i, word(6))
		var ref *ProjectRef
		if i%3 != 0 {
			ref = &ProjectRef{ID: types.ProjectID(fmt.Sprintf("p-%d", i)), Name: "P" + word(rng.Intn(15))}
		}

		enc, err := Encode(name, id, ref)
		require.NoError(t, err)

		dec, err := Decode(enc.String())
		require.NoError(t, err, "path %q", enc.String())
		assert.Equal(t, id, dec.ID)
		if ref == nil {
			assert.False(t, dec.HasProject())
		} else {
			assert.Equal(t, ref.ID, dec.ProjectID)
		}
		assert.Equal(t, enc, dec)
	}
}

func TestLossyNameKeepsID(t *testing.T) {
	enc, err := Encode("a/b[c]", "f9", &ProjectRef{ID: "p9", Name: "x:y"})
	require.NoError(t, err)

	dec, err := Decode(enc.String())
	require.NoError(t, err)
	assert.Equal(t, "f9", dec.ID)
	assert.Equal(t, types.ProjectID("p9"), dec.ProjectID)
	assert.Equal(t, "a_b_c_", dec.Name)
	assert.Equal(t, "x_y", dec.ProjectName)
}

func TestParseSegment(t *testing.T) {
	name, id, err := ParseSegment("Demo[p1]")
	require.NoError(t, err)
	assert.Equal(t, "Demo", name)
	assert.Equal(t, "p1", id)

	_, _, err = ParseSegment(NoProjectFolder)
	assert.Error(t, err)
}
