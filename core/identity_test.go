// Copyright 2024 The go-trustnet Authors
// This file is part of the go-trustnet library.
//
// The go-trustnet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-trustnet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-trustnet library. If not, see <http://www.gnu.org/licenses/>.

package core

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/go-trustnet/core/state"
	"github.com/trustnet/go-trustnet/core/types"
	"github.com/trustnet/go-trustnet/params"
)

var (
	testOwner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOperator = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testOther    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

const testNow = uint64(1700000000)

func newTestIdentity(t *testing.T) *IdentityRegistry {
	t.Helper()
	reg := NewIdentityRegistry(state.New(nil), NewECDSAVerifier(), types.DomainIdentifier("testnet"))
	reg.now = func() uint64 { return testNow }
	return reg
}

// signDelegation produces a proof of control for the given wallet key over
// the agent's current delegation nonce.
func signDelegation(t *testing.T, reg *IdentityRegistry, agentID uint64, key *ecdsa.PrivateKey, expiry uint64) (common.Address, []byte) {
	t.Helper()
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := reg.DelegationNonce(agentID)
	require.NoError(t, err)
	digest := types.WalletDelegationDigest(reg.domain, agentID, wallet, nonce, expiry)
	proof, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)
	return wallet, proof
}

func TestRegisterMintsSequentialIDs(t *testing.T) {
	reg := newTestIdentity(t)

	first, err := reg.Register(testOwner)
	require.NoError(t, err)
	require.Equal(t, uint64(params.FirstAgentID), first)

	second, err := reg.RegisterWithURI(testOther, "ipfs://agent", common.HexToHash("0xaa"))
	require.NoError(t, err)
	require.Equal(t, first+1, second)
	require.Equal(t, uint64(2), reg.AgentCount())

	agent, err := reg.AgentByID(second)
	require.NoError(t, err)
	require.Equal(t, testOther, agent.Owner)
	require.Equal(t, "ipfs://agent", agent.URI)
	require.Equal(t, common.HexToHash("0xaa"), agent.MetadataHash)
	require.True(t, agent.Active)
	require.Equal(t, testNow, agent.CreatedAt)
}

func TestRegisterValidation(t *testing.T) {
	reg := newTestIdentity(t)

	_, err := reg.Register(common.Address{})
	require.ErrorIs(t, err, ErrZeroAddress)

	_, err = reg.RegisterWithURI(testOwner, strings.Repeat("a", params.MaxURILength+1), common.Hash{})
	require.ErrorIs(t, err, ErrOversizedURI)

	// A bad metadata entry aborts the whole registration.
	entries := []types.MetadataEntry{
		{Key: "ok", Value: []byte("v")},
		{Key: "", Value: []byte("v")},
	}
	_, err = reg.RegisterWithMetadata(testOwner, "", common.Hash{}, entries)
	require.ErrorIs(t, err, ErrEmptyMetadataKey)
	require.Equal(t, uint64(0), reg.AgentCount())
}

func TestRegisterWithMetadata(t *testing.T) {
	reg := newTestIdentity(t)

	id, err := reg.RegisterWithMetadata(testOwner, "ipfs://agent", common.Hash{}, []types.MetadataEntry{
		{Key: "model", Value: []byte("m-1")},
		{Key: "version", Value: []byte("3")},
	})
	require.NoError(t, err)

	value, err := reg.MetadataOf(id, "model")
	require.NoError(t, err)
	require.Equal(t, []byte("m-1"), value)
}

func TestUpdateURIAuthorization(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	require.ErrorIs(t, reg.UpdateURI(testOther, id, "ipfs://x", common.Hash{}), ErrNotAuthorized)
	require.NoError(t, reg.UpdateURI(testOwner, id, "ipfs://x", common.HexToHash("0x01")))

	// An approved operator may update as well.
	require.NoError(t, reg.SetApprovalForAll(testOwner, testOperator, true))
	require.NoError(t, reg.UpdateURI(testOperator, id, "ipfs://y", common.Hash{}))

	require.NoError(t, reg.SetApprovalForAll(testOwner, testOperator, false))
	require.ErrorIs(t, reg.UpdateURI(testOperator, id, "ipfs://z", common.Hash{}), ErrNotAuthorized)
}

func TestSetMetadataBatchAtomic(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	err := reg.SetMetadataBatch(testOwner, id, []string{"a", "b"}, [][]byte{[]byte("1")})
	require.ErrorIs(t, err, ErrLengthMismatch)

	err = reg.SetMetadataBatch(testOwner, id,
		[]string{"a", strings.Repeat("k", params.MaxMetadataKeyLength+1)},
		[][]byte{[]byte("1"), []byte("2")})
	require.ErrorIs(t, err, ErrOversizedMetadataKey)

	// Nothing of the failed batch is visible.
	value, err := reg.MetadataOf(id, "a")
	require.NoError(t, err)
	require.Empty(t, value)

	require.NoError(t, reg.SetMetadataBatch(testOwner, id, []string{"a", "b"}, [][]byte{[]byte("1"), []byte("2")}))
	value, _ = reg.MetadataOf(id, "b")
	require.Equal(t, []byte("2"), value)

	// An empty value deletes the key.
	require.NoError(t, reg.SetMetadata(testOwner, id, "a", nil))
	value, _ = reg.MetadataOf(id, "a")
	require.Empty(t, value)
}

func TestSetWallet(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expiry := testNow + 3600
	wallet, proof := signDelegation(t, reg, id, key, expiry)

	// Only the owner may delegate.
	require.ErrorIs(t, reg.SetWallet(testOther, id, wallet, expiry, proof), ErrNotOwner)

	require.NoError(t, reg.SetWallet(testOwner, id, wallet, expiry, proof))
	got, err := reg.WalletOf(id)
	require.NoError(t, err)
	require.Equal(t, wallet, got)

	nonce, _ := reg.DelegationNonce(id)
	require.Equal(t, uint64(1), nonce)

	// The consumed proof does not replay.
	require.ErrorIs(t, reg.SetWallet(testOwner, id, wallet, expiry, proof), ErrInvalidProof)
}

func TestSetWalletRejectsBadProofs(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expiry := testNow + 3600
	wallet, proof := signDelegation(t, reg, id, key, expiry)

	// Expired proof.
	require.ErrorIs(t, reg.SetWallet(testOwner, id, wallet, testNow-1, proof), ErrProofExpired)

	// Proof signed by a different key than the claimed wallet.
	otherKey, _ := crypto.GenerateKey()
	_, otherProof := signDelegation(t, reg, id, otherKey, expiry)
	require.ErrorIs(t, reg.SetWallet(testOwner, id, wallet, expiry, otherProof), ErrInvalidProof)

	// Truncated proof.
	require.ErrorIs(t, reg.SetWallet(testOwner, id, wallet, expiry, proof[:32]), ErrInvalidProof)

	// A failed delegation leaves no wallet behind.
	got, _ := reg.WalletOf(id)
	require.Equal(t, common.Address{}, got)
}

func TestUnsetWallet(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	key, _ := crypto.GenerateKey()
	expiry := testNow + 3600
	wallet, proof := signDelegation(t, reg, id, key, expiry)
	require.NoError(t, reg.SetWallet(testOwner, id, wallet, expiry, proof))

	// The wallet itself may revoke its delegation.
	require.NoError(t, reg.UnsetWallet(wallet, id))
	got, _ := reg.WalletOf(id)
	require.Equal(t, common.Address{}, got)

	// With no wallet set, a random caller is rejected.
	require.ErrorIs(t, reg.UnsetWallet(testOther, id), ErrNotAuthority)

	// The owner clearing an empty wallet succeeds without emitting anything.
	events := make(chan types.Notification, 1)
	sub := reg.SubscribeEvents(events)
	defer sub.Unsubscribe()
	require.NoError(t, reg.UnsetWallet(testOwner, id))
	select {
	case n := <-events:
		t.Fatalf("unexpected event %s", n.Event.Name())
	default:
	}
}

func TestTransferClearsWallet(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	key, _ := crypto.GenerateKey()
	expiry := testNow + 3600
	wallet, proof := signDelegation(t, reg, id, key, expiry)
	require.NoError(t, reg.SetWallet(testOwner, id, wallet, expiry, proof))

	events := make(chan types.Notification, 8)
	sub := reg.SubscribeEvents(events)
	defer sub.Unsubscribe()

	require.ErrorIs(t, reg.Transfer(testOwner, id, common.Address{}), ErrZeroAddress)
	require.ErrorIs(t, reg.Transfer(testOther, id, testOther), ErrNotAuthorized)
	require.NoError(t, reg.Transfer(testOwner, id, testOther))

	owner, _ := reg.OwnerOf(id)
	require.Equal(t, testOther, owner)
	got, _ := reg.WalletOf(id)
	require.Equal(t, common.Address{}, got)

	// Clearing the wallet announces itself before the transfer.
	first := <-events
	cleared, ok := first.Event.(types.AgentWalletCleared)
	require.True(t, ok)
	require.Equal(t, wallet, cleared.Wallet)
	second := <-events
	moved, ok := second.Event.(types.AgentTransferred)
	require.True(t, ok)
	require.Equal(t, testOwner, moved.From)
	require.Equal(t, testOther, moved.To)
}

func TestTransferByOperator(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)
	require.NoError(t, reg.SetApprovalForAll(testOwner, testOperator, true))

	require.NoError(t, reg.Transfer(testOperator, id, testOther))
	owner, _ := reg.OwnerOf(id)
	require.Equal(t, testOther, owner)

	// The approval belonged to the old owner; it does not follow the agent.
	require.ErrorIs(t, reg.Transfer(testOperator, id, testOwner), ErrNotAuthorized)
}

func TestDeactivateReactivate(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	require.ErrorIs(t, reg.Reactivate(testOwner, id), ErrAgentActive)
	require.ErrorIs(t, reg.Deactivate(testOther, id), ErrNotOwner)

	require.NoError(t, reg.Deactivate(testOwner, id))
	active, _ := reg.IsActive(id)
	require.False(t, active)
	require.ErrorIs(t, reg.Deactivate(testOwner, id), ErrAgentInactive)

	require.NoError(t, reg.Reactivate(testOwner, id))
	active, _ = reg.IsActive(id)
	require.True(t, active)
}

func TestIsAuthority(t *testing.T) {
	reg := newTestIdentity(t)
	id, _ := reg.Register(testOwner)

	ok, err := reg.IsAuthority(id, testOwner)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = reg.IsAuthority(id, testOther)
	require.False(t, ok)

	// The zero address is never an authority, even while no wallet is set.
	ok, _ = reg.IsAuthority(id, common.Address{})
	require.False(t, ok)

	_, err = reg.IsAuthority(99, testOwner)
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestQueriesOnMissingAgent(t *testing.T) {
	reg := newTestIdentity(t)

	require.False(t, reg.Exists(1))
	_, err := reg.OwnerOf(1)
	require.ErrorIs(t, err, ErrAgentNotFound)
	_, err = reg.AgentByID(1)
	require.ErrorIs(t, err, ErrAgentNotFound)
	require.ErrorIs(t, reg.UpdateURI(testOwner, 1, "", common.Hash{}), ErrAgentNotFound)
	require.ErrorIs(t, reg.Transfer(testOwner, 1, testOther), ErrAgentNotFound)
	require.ErrorIs(t, reg.Deactivate(testOwner, 1), ErrAgentNotFound)
}
