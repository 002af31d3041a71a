package workflow

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chids04/0xm-relay/db"
	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/milestone"
	"github.com/chids04/0xm-relay/store"
)

var testContractAddrs = ledger.Addresses{
	Forwarder:   ethcommon.HexToAddress("0x1000000000000000000000000000000000000001"),
	Tracker:     ethcommon.HexToAddress("0x1000000000000000000000000000000000000002"),
	Token:       ethcommon.HexToAddress("0x1000000000000000000000000000000000000003"),
	Certificate: ethcommon.HexToAddress("0x1000000000000000000000000000000000000004"),
	Relayer:     ethcommon.HexToAddress("0x1000000000000000000000000000000000000005"),
}

type fakeVault struct {
	keys     map[string]*ecdsa.PrivateKey
	balances map[string]string
}

func newFakeVault() *fakeVault {
	return &fakeVault{keys: make(map[string]*ecdsa.PrivateKey), balances: make(map[string]string)}
}

func (v *fakeVault) keyFor(userID string) *ecdsa.PrivateKey {
	if k, ok := v.keys[userID]; ok {
		return k
	}
	k, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	v.keys[userID] = k
	return k
}

func (v *fakeVault) addressFor(userID string) ethcommon.Address {
	return crypto.PubkeyToAddress(v.keyFor(userID).PublicKey)
}

func (v *fakeVault) CreateWallet(userID string) (*store.Wallet, error) {
	return &store.Wallet{UserID: userID, Address: v.addressFor(userID).Hex()}, nil
}

func (v *fakeVault) Wallet(userID string) (*store.Wallet, error) {
	if _, ok := v.keys[userID]; !ok {
		return nil, errors.Newf(errors.CodeWalletNotFound, "no wallet for user %s", userID)
	}
	return &store.Wallet{UserID: userID, Address: v.addressFor(userID).Hex()}, nil
}

func (v *fakeVault) SignerKey(userID string) (*ecdsa.PrivateKey, ethcommon.Address, error) {
	if _, ok := v.keys[userID]; !ok {
		return nil, ethcommon.Address{}, errors.Newf(errors.CodeWalletNotFound, "no wallet for user %s", userID)
	}
	key := v.keyFor(userID)
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func (v *fakeVault) UpdateCachedBalance(userID, balance string) error {
	v.balances[userID] = balance
	return nil
}

type fakeContent struct {
	objects map[string][]byte
	removed []string
	next    int
	addErr  error
}

func newFakeContent() *fakeContent {
	return &fakeContent{objects: make(map[string][]byte)}
}

func (c *fakeContent) AddBytes(_ context.Context, data []byte) (string, error) {
	if c.addErr != nil {
		return "", c.addErr
	}
	c.next++
	cid := fmt.Sprintf("Qm%04d", c.next)
	c.objects[cid] = data
	return cid, nil
}

func (c *fakeContent) Fetch(_ context.Context, cid string) ([]byte, error) {
	data, ok := c.objects[cid]
	if !ok {
		return nil, errors.Newf(errors.CodeContentStoreTimeout, "no object %s", cid)
	}
	return data, nil
}

func (c *fakeContent) Remove(_ context.Context, cid string) error {
	c.removed = append(c.removed, cid)
	delete(c.objects, cid)
	return nil
}

type fakeQuoter struct {
	fee      *big.Int
	err      error
	failures int // transient ledger failures before answering
	calls    int
}

func (q *fakeQuoter) Quote(_ context.Context, action ledger.Action, _ ethcommon.Address) (*ledger.Quote, error) {
	q.calls++
	if q.failures > 0 {
		q.failures--
		return nil, errors.New(errors.CodeLedgerUnavailable, "ledger unreachable")
	}
	if q.err != nil {
		return nil, q.err
	}
	return &ledger.Quote{
		Action:        action,
		BaseFee:       new(big.Int).Set(q.fee),
		DiscountedFee: new(big.Int).Set(q.fee),
		Tier:          ledger.TierFree,
	}, nil
}

type fakeApprovals struct {
	values []*big.Int
	err    error
}

func (a *fakeApprovals) AuthorizeSpend(_ context.Context, key *ecdsa.PrivateKey, value *big.Int) (*ledger.ForwardedCallRequest, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.values = append(a.values, new(big.Int).Set(value))
	return &ledger.ForwardedCallRequest{
		From:  crypto.PubkeyToAddress(key.PublicKey),
		Value: big.NewInt(0),
		Data:  []byte("permit"),
	}, nil
}

type fakeBuilder struct{}

func (fakeBuilder) Build(_ context.Context, key *ecdsa.PrivateKey, target ethcommon.Address, calldata []byte) (*ledger.ForwardedCallRequest, error) {
	return &ledger.ForwardedCallRequest{
		From:  crypto.PubkeyToAddress(key.PublicKey),
		To:    target,
		Value: big.NewInt(0),
		Data:  calldata,
	}, nil
}

type submission struct {
	action ledger.Action
	req    *ledger.ForwardedCallRequest
}

type fakeSubmitter struct {
	submissions []submission
	events      map[ledger.Action][]ledger.Event
	failOn      map[ledger.Action]error
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{
		events: make(map[ledger.Action][]ledger.Event),
		failOn: make(map[ledger.Action]error),
	}
}

func (fs *fakeSubmitter) Submit(_ context.Context, action ledger.Action, req *ledger.ForwardedCallRequest) (*ledger.SubmitResult, error) {
	if err := fs.failOn[action]; err != nil {
		return nil, err
	}
	fs.submissions = append(fs.submissions, submission{action: action, req: req})
	return &ledger.SubmitResult{
		TxHash:      ethcommon.HexToHash("0xfeed"),
		BlockNumber: 100,
		Events:      fs.events[action],
	}, nil
}

func (fs *fakeSubmitter) actions() []ledger.Action {
	out := make([]ledger.Action, 0, len(fs.submissions))
	for _, s := range fs.submissions {
		out = append(out, s.action)
	}
	return out
}

type fakeReader struct {
	balance  *big.Int
	failures int
	calls    int
}

func (r *fakeReader) TokenBalance(_ context.Context, _ ethcommon.Address) (*big.Int, error) {
	r.calls++
	if r.failures > 0 {
		r.failures--
		return nil, errors.New(errors.CodeLedgerUnavailable, "ledger unreachable")
	}
	return new(big.Int).Set(r.balance), nil
}

type fakeAudit struct {
	entries []store.RelayedTransaction
	from    ethcommon.Address
	limit   int
}

func (a *fakeAudit) History(from ethcommon.Address, limit int) ([]store.RelayedTransaction, error) {
	a.from = from
	a.limit = limit
	return a.entries, nil
}

type fakeEventSource struct {
	events []ledger.Event
}

func (e *fakeEventSource) Scan(_ context.Context, _, _ uint64) ([]ledger.Event, error) {
	return e.events, nil
}

type fakeChain struct{ head uint64 }

func (c *fakeChain) GetLatestBlock(_ context.Context) (uint64, error) { return c.head, nil }

type fixture struct {
	svc       *Service
	vault     *fakeVault
	content   *fakeContent
	quoter    *fakeQuoter
	approvals *fakeApprovals
	submitter *fakeSubmitter
	reader    *fakeReader
	events    *fakeEventSource
	audit     *fakeAudit
	states    *milestone.StateMachine
	database  *db.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	f := &fixture{
		vault:     newFakeVault(),
		content:   newFakeContent(),
		quoter:    &fakeQuoter{fee: big.NewInt(100)},
		approvals: &fakeApprovals{},
		submitter: newFakeSubmitter(),
		reader:    &fakeReader{balance: big.NewInt(10_000)},
		events:    &fakeEventSource{},
		audit:     &fakeAudit{},
		database:  database,
	}
	f.states = milestone.NewStateMachine(database.Client(), zerolog.Nop())
	verifier := milestone.NewVerificationEngine(database.Client(), f.content, alwaysMatchVerifier{}, zerolog.Nop())

	f.svc = NewService(Deps{
		Vault:            f.vault,
		Content:          f.content,
		Oracle:           f.quoter,
		Approvals:        f.approvals,
		MetaTx:           fakeBuilder{},
		Submitter:        f.submitter,
		Reader:           f.reader,
		Events:           f.events,
		Chain:            &fakeChain{head: 500},
		Audit:            f.audit,
		Encoder:          ledger.NewActionEncoder(testContractAddrs),
		States:           f.states,
		Verifier:         verifier,
		DeclineRetention: 72 * time.Hour,
	}, zerolog.Nop())
	return f
}

type alwaysMatchVerifier struct{}

func (alwaysMatchVerifier) VerifyHash(_ context.Context, _ ethcommon.Address, _, _ string) (bool, error) {
	return true, nil
}

func bucketOf(t *testing.T, f *fixture, userID, milestoneID string) string {
	t.Helper()
	var entries []store.IndexEntry
	err := f.database.Client().
		Where("user_id = ? AND milestone_id = ?", userID, milestoneID).
		Find(&entries).Error
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 1)
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Bucket
}

func TestCreateMilestoneSolo(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description: "ran a marathon",
		OccurredAt:  "2026-05-01",
	})
	require.NoError(t, err)

	assert.Equal(t, store.BucketAccepted, bucketOf(t, f, "user-1", m.ID))
	assert.False(t, m.IsPending)
	assert.NotEmpty(t, m.ContentHash)
	assert.NotEmpty(t, m.MetadataCID)
	assert.Equal(t, []ledger.Action{ledger.ActionPermit, ledger.ActionSoloMilestone}, f.submitter.actions())

	// the stored metadata recomputes to the recorded hash
	raw, err := f.content.Fetch(context.Background(), m.MetadataCID)
	require.NoError(t, err)
	md, err := milestone.ParseMetadata(raw)
	require.NoError(t, err)
	hash, err := md.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, hash)
}

func TestCreateMilestoneGroup(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.vault.keyFor("user-2")
	f.vault.keyFor("user-3")

	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description:   "team hackathon win",
		OccurredAt:    "2026-06-10",
		TaggedUserIDs: []string{"user-2", "user-3"},
	})
	require.NoError(t, err)

	assert.True(t, m.IsPending)
	assert.Equal(t, 0, m.SignatureCount)
	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		assert.Equal(t, store.BucketPending, bucketOf(t, f, userID, m.ID), userID)
	}
	assert.Contains(t, f.submitter.actions(), ledger.ActionGroupMilestone)
}

func TestCreateMilestoneTaggedUserWithoutWallet(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	_, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description:   "x",
		OccurredAt:    "2026-01-01",
		TaggedUserIDs: []string{"user-without-wallet"},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeWalletNotFound))
}

func TestCreateMilestoneRollsBackArtifacts(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.submitter.failOn[ledger.ActionSoloMilestone] = errors.New(errors.CodeLedgerExecutionFailed, "reverted")

	_, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description: "x",
		OccurredAt:  "2026-01-01",
		Image:       []byte("png bytes"),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeLedgerExecutionFailed))

	// both the image and the metadata document were unpinned
	assert.Len(t, f.content.removed, 2)
	assert.Empty(t, f.content.objects)

	var count int64
	require.NoError(t, f.database.Client().Model(&store.Milestone{}).Count(&count).Error)
	assert.Zero(t, count, "no off-chain record without a ledger commit")
}

func createGroupMilestone(t *testing.T, f *fixture) *store.Milestone {
	t.Helper()
	f.vault.keyFor("user-1")
	f.vault.keyFor("user-2")
	f.vault.keyFor("user-3")
	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description:   "group milestone",
		OccurredAt:    "2026-06-10",
		TaggedUserIDs: []string{"user-2", "user-3"},
	})
	require.NoError(t, err)
	return m
}

func TestSignMilestonePartial(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	result, err := f.svc.SignMilestone(context.Background(), "user-2", m.ID)
	require.NoError(t, err)
	assert.False(t, result.Finalized)

	assert.Equal(t, store.BucketSigned, bucketOf(t, f, "user-2", m.ID))
	assert.Equal(t, store.BucketPending, bucketOf(t, f, "user-1", m.ID))
	assert.Equal(t, store.BucketPending, bucketOf(t, f, "user-3", m.ID))
}

func TestSignMilestoneObservesFinalizedEvent(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	_, err := f.svc.SignMilestone(context.Background(), "user-2", m.ID)
	require.NoError(t, err)

	f.submitter.events[ledger.ActionSign] = []ledger.Event{{
		Kind:        ledger.EventFinalized,
		MilestoneID: m.ID,
	}}
	result, err := f.svc.SignMilestone(context.Background(), "user-3", m.ID)
	require.NoError(t, err)
	assert.True(t, result.Finalized)

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		assert.Equal(t, store.BucketAccepted, bucketOf(t, f, userID, m.ID), userID)
	}
	stored, err := f.states.Milestone(m.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPending)
}

func TestSignMilestoneNotAParticipant(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)
	f.vault.keyFor("user-9")

	_, err := f.svc.SignMilestone(context.Background(), "user-9", m.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotAParticipant))
}

func TestDeclineMilestone(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	require.NoError(t, f.svc.DeclineMilestone(context.Background(), "user-2", m.ID))

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		assert.Equal(t, store.BucketDeclined, bucketOf(t, f, userID, m.ID), userID)
	}
	var record store.ExpiryRecord
	require.NoError(t, f.database.Client().Where("milestone_id = ?", m.ID).First(&record).Error)
	assert.True(t, record.CleanupAt.After(time.Now().Add(71*time.Hour)))
	assert.Contains(t, f.submitter.actions(), ledger.ActionDecline)
}

func TestDeclineMilestoneOwnerRejected(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	err := f.svc.DeclineMilestone(context.Background(), "user-1", m.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotAuthorized))
}

func TestVerifyMilestone(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description: "verified achievement",
		OccurredAt:  "2026-02-02",
	})
	require.NoError(t, err)

	result, err := f.svc.VerifyMilestone(context.Background(), "user-1", m.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, m.ContentHash, result.Hash)
}

func TestTransferPermitCoversAmountPlusFee(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	result, err := f.svc.Transfer(context.Background(), "user-1",
		"0x2000000000000000000000000000000000000009", big.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), result.Amount)
	assert.Equal(t, big.NewInt(100), result.Fee)

	require.Len(t, f.approvals.values, 1)
	assert.Equal(t, big.NewInt(500), f.approvals.values[0])
	assert.Equal(t, []ledger.Action{ledger.ActionPermit, ledger.ActionTransfer}, f.submitter.actions())
}

func TestTransferRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	_, err := f.svc.Transfer(context.Background(), "user-1", "not-an-address", big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = f.svc.Transfer(context.Background(), "user-1",
		"0x2000000000000000000000000000000000000009", big.NewInt(0))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	txHash, err := f.svc.Subscribe(context.Background(), "user-1", ledger.Tier1)
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)
	assert.Equal(t, []ledger.Action{ledger.ActionSubscribe}, f.submitter.actions())

	_, err = f.svc.Subscribe(context.Background(), "user-1", ledger.Tier(9))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestMintCertificate(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description: "solo achievement",
		OccurredAt:  "2026-03-03",
	})
	require.NoError(t, err)

	f.submitter.events[ledger.ActionMint] = []ledger.Event{{
		Kind:    ledger.EventCertificateMinted,
		TokenID: big.NewInt(7),
	}}

	result, err := f.svc.MintCertificate(context.Background(), "user-1", m.ID, []byte("cert image"))
	require.NoError(t, err)
	assert.Equal(t, "7", result.TokenID)
	assert.Contains(t, result.TokenURI, "ipfs://")

	stored, err := f.states.Milestone(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", stored.NFTTokenID)

	// a second mint is rejected
	_, err = f.svc.MintCertificate(context.Background(), "user-1", m.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeAlreadyExists))
}

func TestMintCertificateRequiresFinalized(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	_, err := f.svc.MintCertificate(context.Background(), "user-1", m.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestMintCertificateRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	m, err := f.svc.CreateMilestone(context.Background(), "user-1", CreateMilestoneInput{
		Description: "solo achievement",
		OccurredAt:  "2026-03-03",
	})
	require.NoError(t, err)

	uploadedBefore := len(f.content.objects)
	f.submitter.failOn[ledger.ActionMint] = errors.New(errors.CodeLedgerExecutionFailed, "reverted")

	_, err = f.svc.MintCertificate(context.Background(), "user-1", m.ID, []byte("cert image"))
	require.Error(t, err)
	assert.Len(t, f.content.objects, uploadedBefore, "mint artifacts rolled back")
}

func TestReconcileAppliesFinalizedEvent(t *testing.T) {
	f := newFixture(t)
	m := createGroupMilestone(t, f)

	// no event yet
	finalized, err := f.svc.Reconcile(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, finalized)

	f.events.events = []ledger.Event{{Kind: ledger.EventFinalized, MilestoneID: m.ID}}
	finalized, err = f.svc.Reconcile(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, finalized)

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		assert.Equal(t, store.BucketAccepted, bucketOf(t, f, userID, m.ID), userID)
	}

	// replaying is harmless
	finalized, err = f.svc.Reconcile(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, finalized)
}

func TestBalanceRefreshesCache(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.reader.balance = big.NewInt(4242)

	balance, err := f.svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4242), balance)
	assert.Equal(t, "4242", f.vault.balances["user-1"])
}

func TestQuoteFee(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")

	quote, err := f.svc.QuoteFee(context.Background(), "user-1", ledger.ActionSoloMilestone)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), quote.DiscountedFee)

	_, err = f.svc.QuoteFee(context.Background(), "user-none", ledger.ActionSign)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeWalletNotFound))
}

func TestQuoteFeeRetriesTransientLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.quoter.failures = 1

	quote, err := f.svc.QuoteFee(context.Background(), "user-1", ledger.ActionSign)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), quote.DiscountedFee)
	assert.Equal(t, 2, f.quoter.calls)
}

func TestQuoteFeeDoesNotRetryNonTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.quoter.err = errors.New(errors.CodeValidation, "unknown action")

	_, err := f.svc.QuoteFee(context.Background(), "user-1", ledger.Action("bogus"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	assert.Equal(t, 1, f.quoter.calls)
}

func TestBalanceRetriesTransientLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.vault.keyFor("user-1")
	f.reader.failures = 1
	f.reader.balance = big.NewInt(777)

	balance, err := f.svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(777), balance)
	assert.Equal(t, 2, f.reader.calls)
}

func TestHistoryListsCallerSubmissions(t *testing.T) {
	f := newFixture(t)
	addr := f.vault.addressFor("user-1")
	f.audit.entries = []store.RelayedTransaction{
		{TxHash: "0xbb", Action: "sign", Status: "success"},
		{TxHash: "0xaa", Action: "permit", Status: "reverted"},
	}

	entries, err := f.svc.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0xbb", entries[0].TxHash)

	// The read is scoped to the caller's wallet address and capped.
	assert.Equal(t, addr, f.audit.from)
	assert.Equal(t, 50, f.audit.limit)

	_, err = f.svc.History(context.Background(), "user-none")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeWalletNotFound))
}
