package gitsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/dshills/flowsync/pkg/errors"
	"github.com/dshills/flowsync/pkg/remote"
)

func addUpstream(t *testing.T, h *harness) {
	t.Helper()
	d, err := remote.NewDescriptor("upstream", "git@ghe.example.com:team/flows.git", "U")
	require.NoError(t, err)
	require.NoError(t, h.registry.AddRemote(d))
}

func TestListBranches(t *testing.T) {
	h := newHarness(t, "main", "staging", "feature")

	list, err := h.orch.ListBranches(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "origin", list.Remote)
	assert.Equal(t, "main", list.Current)
	assert.Equal(t, []string{"feature", "main", "staging"}, list.Branches)

	_, err = h.orch.ListBranches(context.Background(), "nope")
	assert.True(t, errors.Is(err, flowerrors.ErrRemoteNotFound))
}

func TestCheckout(t *testing.T) {
	h := newHarness(t, "main", "staging")
	ctx := context.Background()

	require.NoError(t, h.orch.Checkout(ctx, "staging", ""))
	sel, err := h.registry.Selection(testProfile)
	require.NoError(t, err)
	assert.Equal(t, remote.Selection{Remote: "origin", Branch: "staging"}, sel)

	err = h.orch.Checkout(ctx, "ghost", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, flowerrors.ErrBranchNotFound))
	assert.Contains(t, err.Error(), "ghost")

	sel, _ = h.registry.Selection(testProfile)
	assert.Equal(t, "staging", sel.Branch, "a failed checkout leaves the selection alone")
}

func TestCheckoutWithRemoteSelectsRemote(t *testing.T) {
	h := newHarness(t, "main", "release")
	addUpstream(t, h)

	require.NoError(t, h.orch.Checkout(context.Background(), "release", "upstream"))
	sel, err := h.registry.Selection(testProfile)
	require.NoError(t, err)
	assert.Equal(t, remote.Selection{Remote: "upstream", Branch: "release"}, sel)
}

func TestSelectRemoteValidatesBranch(t *testing.T) {
	h := newHarness(t, "main", "dev")
	addUpstream(t, h)
	ctx := context.Background()

	err := h.orch.SelectRemote(ctx, "upstream", "missing")
	assert.True(t, errors.Is(err, flowerrors.ErrBranchNotFound))

	require.NoError(t, h.orch.SelectRemote(ctx, "upstream", "dev"))
	sel, _ := h.registry.Selection(testProfile)
	assert.Equal(t, remote.Selection{Remote: "upstream", Branch: "dev"}, sel)

	require.NoError(t, h.orch.SelectRemote(ctx, "origin", ""))
	sel, _ = h.registry.Selection(testProfile)
	assert.Equal(t, remote.Selection{Remote: "origin", Branch: "dev"}, sel)

	err = h.orch.SelectRemote(ctx, "ghost", "")
	assert.True(t, errors.Is(err, flowerrors.ErrRemoteNotFound))
}

func TestCreateBranch(t *testing.T) {
	h := newHarness(t, "main", "staging")
	h.hosting.SetFile("staging", "_no_project/A[f1].json", []byte(`{}`))
	ctx := context.Background()

	from, err := h.orch.CreateBranch(ctx, "feature", "", "")
	require.NoError(t, err)
	assert.Equal(t, "main", from)

	from, err = h.orch.CreateBranch(ctx, "hotfix", "staging", "")
	require.NoError(t, err)
	assert.Equal(t, "staging", from)
	_, copied := h.hosting.File("hotfix", "_no_project/A[f1].json")
	assert.True(t, copied)

	_, err = h.orch.CreateBranch(ctx, "feature", "", "")
	assert.True(t, errors.Is(err, flowerrors.ErrBranchExists))

	_, err = h.orch.CreateBranch(ctx, "other", "ghost", "")
	assert.True(t, errors.Is(err, flowerrors.ErrBranchNotFound))

	sel, _ := h.registry.Selection(testProfile)
	assert.Equal(t, "main", sel.Branch, "creating a branch does not select it")
}

func TestSwitch(t *testing.T) {
	h := newHarness(t, "main")
	ctx := context.Background()

	err := h.orch.Switch(ctx, "feature", SwitchOptions{})
	assert.True(t, errors.Is(err, flowerrors.ErrBranchNotFound))

	require.NoError(t, h.orch.Switch(ctx, "feature", SwitchOptions{Create: true}))
	sel, _ := h.registry.Selection(testProfile)
	assert.Equal(t, "feature", sel.Branch)

	err = h.orch.Switch(ctx, "feature", SwitchOptions{Create: true})
	assert.True(t, errors.Is(err, flowerrors.ErrBranchExists))

	require.NoError(t, h.orch.Switch(ctx, "main", SwitchOptions{}))
	sel, _ = h.registry.Selection(testProfile)
	assert.Equal(t, "main", sel.Branch)
}
