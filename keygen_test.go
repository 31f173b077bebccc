package frost

import (
	"errors"
	"testing"
)

type keygenFixture struct {
	cs       Ciphersuite
	ids      []Identifier
	sessions map[Identifier]*KeygenSession
	round1   map[Identifier]*Round1Package
}

func newKeygenFixture(t *testing.T, n, threshold int) *keygenFixture {
	t.Helper()
	cs := NewEd25519Ciphersuite()
	f := &keygenFixture{
		cs:       cs,
		ids:      SequentialIdentifiers(cs.Curve(), n),
		sessions: make(map[Identifier]*KeygenSession, n),
		round1:   make(map[Identifier]*Round1Package, n),
	}
	for _, id := range f.ids {
		s, err := NewKeygenSession(cs, id, f.ids, threshold)
		if err != nil {
			t.Fatalf("Failed to create session %s: %v", id, err)
		}
		f.sessions[id] = s
		pkg, err := s.Round1()
		if err != nil {
			t.Fatalf("Round 1 failed for %s: %v", id, err)
		}
		f.round1[id] = pkg
	}
	return f
}

// round2 runs round 2 for everyone and returns the shares addressed to
// each recipient.
func (f *keygenFixture) round2(t *testing.T) map[Identifier][]*SecretShare {
	t.Helper()
	inbox := make(map[Identifier][]*SecretShare, len(f.ids))
	for _, id := range f.ids {
		shares, err := f.sessions[id].Round2(othersRound1(f.round1, id))
		if err != nil {
			t.Fatalf("Round 2 failed for %s: %v", id, err)
		}
		for recipient, share := range shares {
			inbox[recipient] = append(inbox[recipient], share)
		}
	}
	return inbox
}

func TestKeygenCorruptedShare(t *testing.T) {
	f := newKeygenFixture(t, 3, 2)
	inbox := f.round2(t)

	victim, cheater := f.ids[2], f.ids[0]
	for _, share := range inbox[victim] {
		if share.Sender == cheater {
			share.Value = share.Value.Add(f.cs.Curve().ScalarOne())
		}
	}

	_, _, err := f.sessions[victim].Round3(inbox[victim])
	if !errors.Is(err, ErrInvalidShare) {
		t.Fatalf("Expected InvalidShare, got %v", err)
	}
	culprit, ok := Culprit(err)
	if !ok || culprit != cheater {
		t.Fatalf("Expected culprit %s, got %s (%v)", cheater, culprit, ok)
	}
	if f.sessions[victim].State() != DKGAborted {
		t.Fatalf("Expected session to abort, state is %s", f.sessions[victim].State())
	}

	// Honest participants who received untampered shares still finish.
	if _, _, err := f.sessions[f.ids[1]].Round3(inbox[f.ids[1]]); err != nil {
		t.Fatalf("Honest participant failed: %v", err)
	}
}

func TestKeygenTamperedCommitment(t *testing.T) {
	t.Run("HigherCoefficient", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		cheater := f.ids[1]

		// The proof of knowledge covers only C[0], so round 2 accepts the
		// package; the mismatch surfaces as a Feldman failure in round 3.
		points := f.round1[cheater].Commitment.Points()
		points[1] = points[1].Add(f.cs.Curve().BasePoint())
		tampered, err := NewVSSCommitment(f.cs.Curve(), points)
		if err != nil {
			t.Fatalf("Failed to build commitment: %v", err)
		}
		f.round1[cheater] = &Round1Package{Sender: cheater, Commitment: tampered, Proof: f.round1[cheater].Proof}

		victim := f.ids[0]
		if _, err := f.sessions[victim].Round2(othersRound1(f.round1, victim)); err != nil {
			t.Fatalf("Round 2 should accept the package: %v", err)
		}

		var incoming []*SecretShare
		for _, id := range f.ids {
			if id == victim {
				continue
			}
			peerShares, err := f.sessions[id].Round2(othersRound1(f.round1, id))
			if err != nil && id != cheater {
				t.Fatalf("Round 2 failed for %s: %v", id, err)
			}
			if share, ok := peerShares[victim]; ok {
				incoming = append(incoming, share)
			}
		}

		_, _, err = f.sessions[victim].Round3(incoming)
		if !errors.Is(err, ErrInvalidShare) {
			t.Fatalf("Expected InvalidShare, got %v", err)
		}
		if culprit, _ := Culprit(err); culprit != cheater {
			t.Fatalf("Expected culprit %s, got %s", cheater, culprit)
		}
	})

	t.Run("ConstantTerm", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		cheater := f.ids[2]

		points := f.round1[cheater].Commitment.Points()
		points[0] = points[0].Add(f.cs.Curve().BasePoint())
		tampered, err := NewVSSCommitment(f.cs.Curve(), points)
		if err != nil {
			t.Fatalf("Failed to build commitment: %v", err)
		}
		f.round1[cheater] = &Round1Package{Sender: cheater, Commitment: tampered, Proof: f.round1[cheater].Proof}

		_, err = f.sessions[f.ids[0]].Round2(othersRound1(f.round1, f.ids[0]))
		if !errors.Is(err, ErrInvalidProof) {
			t.Fatalf("Expected InvalidProof, got %v", err)
		}
		if culprit, _ := Culprit(err); culprit != cheater {
			t.Fatalf("Expected culprit %s, got %s", cheater, culprit)
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		cheater := f.ids[1]

		points := append(f.round1[cheater].Commitment.Points(), f.cs.Curve().BasePoint())
		long, err := NewVSSCommitment(f.cs.Curve(), points)
		if err != nil {
			t.Fatalf("Failed to build commitment: %v", err)
		}
		f.round1[cheater] = &Round1Package{Sender: cheater, Commitment: long, Proof: f.round1[cheater].Proof}

		_, err = f.sessions[f.ids[0]].Round2(othersRound1(f.round1, f.ids[0]))
		if !errors.Is(err, ErrInvalidProof) {
			t.Fatalf("Expected InvalidProof, got %v", err)
		}
		if culprit, ok := Culprit(err); !ok || culprit != cheater {
			t.Fatalf("Expected culprit %s, got %s", cheater, culprit)
		}
	})

	t.Run("ReplayedProof", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		// Participant 3 republishes participant 2's package under its own
		// identifier; the proof binds the identifier and must fail.
		copied := f.round1[f.ids[1]]
		f.round1[f.ids[2]] = &Round1Package{Sender: f.ids[2], Commitment: copied.Commitment, Proof: copied.Proof}

		_, err := f.sessions[f.ids[0]].Round2(othersRound1(f.round1, f.ids[0]))
		if !errors.Is(err, ErrInvalidProof) {
			t.Fatalf("Expected InvalidProof, got %v", err)
		}
	})
}

func TestKeygenRoundInputs(t *testing.T) {
	t.Run("IncompleteRoundKeepsSession", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		self := f.ids[0]
		partial := []*Round1Package{f.round1[f.ids[1]]}

		_, err := f.sessions[self].Round2(partial)
		if !errors.Is(err, ErrIncompleteRound) {
			t.Fatalf("Expected IncompleteRound, got %v", err)
		}
		if f.sessions[self].State() != DKGRound1Done {
			t.Fatalf("Incomplete input must not move the session, state is %s", f.sessions[self].State())
		}
		if _, err := f.sessions[self].Round2(othersRound1(f.round1, self)); err != nil {
			t.Fatalf("Retry with the full set failed: %v", err)
		}
	})

	t.Run("DuplicateSender", func(t *testing.T) {
		f := newKeygenFixture(t, 4, 2)
		self := f.ids[0]
		dup := []*Round1Package{f.round1[f.ids[1]], f.round1[f.ids[1]], f.round1[f.ids[2]]}

		_, err := f.sessions[self].Round2(dup)
		if !errors.Is(err, ErrDuplicateParticipant) {
			t.Fatalf("Expected DuplicateParticipant, got %v", err)
		}
		if f.sessions[self].State() != DKGAborted {
			t.Fatalf("Expected abort, state is %s", f.sessions[self].State())
		}
	})

	t.Run("OwnPackage", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		self := f.ids[0]
		withSelf := []*Round1Package{f.round1[self], f.round1[f.ids[1]]}

		_, err := f.sessions[self].Round2(withSelf)
		if !errors.Is(err, ErrDuplicateParticipant) {
			t.Fatalf("Expected DuplicateParticipant, got %v", err)
		}
	})

	t.Run("UnknownSender", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		self := f.ids[0]
		stranger := MustIdentifier(f.cs.Curve(), 42)
		pkgs := []*Round1Package{
			f.round1[f.ids[1]],
			{Sender: stranger, Commitment: f.round1[f.ids[2]].Commitment, Proof: f.round1[f.ids[2]].Proof},
		}

		_, err := f.sessions[self].Round2(pkgs)
		if !errors.Is(err, ErrUnknownParticipant) {
			t.Fatalf("Expected UnknownParticipant, got %v", err)
		}
		if culprit, _ := Culprit(err); culprit != stranger {
			t.Fatalf("Expected culprit %s, got %s", stranger, culprit)
		}
	})

	t.Run("MisaddressedShare", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		inbox := f.round2(t)
		victim := f.ids[0]
		inbox[victim][0].Recipient = f.ids[1]

		_, _, err := f.sessions[victim].Round3(inbox[victim])
		if !errors.Is(err, ErrInvalidShare) {
			t.Fatalf("Expected InvalidShare, got %v", err)
		}
	})

	t.Run("IncompleteRound3", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		inbox := f.round2(t)
		self := f.ids[2]

		_, _, err := f.sessions[self].Round3(inbox[self][:1])
		if !errors.Is(err, ErrIncompleteRound) {
			t.Fatalf("Expected IncompleteRound, got %v", err)
		}
		if _, _, err := f.sessions[self].Round3(inbox[self]); err != nil {
			t.Fatalf("Retry with every share failed: %v", err)
		}
	})
}

func TestKeygenStateMachine(t *testing.T) {
	cs := NewEd25519Ciphersuite()
	ids := SequentialIdentifiers(cs.Curve(), 3)

	t.Run("RoundsOutOfOrder", func(t *testing.T) {
		s, err := NewKeygenSession(cs, ids[0], ids, 2)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if _, err := s.Round2(nil); !errors.Is(err, ErrWrongState) {
			t.Fatalf("Round2 before Round1: expected WrongState, got %v", err)
		}
		if _, _, err := s.Round3(nil); !errors.Is(err, ErrWrongState) {
			t.Fatalf("Round3 before Round2: expected WrongState, got %v", err)
		}
		if _, err := s.Round1(); err != nil {
			t.Fatalf("Round1 failed: %v", err)
		}
		if _, err := s.Round1(); !errors.Is(err, ErrWrongState) {
			t.Fatalf("Second Round1: expected WrongState, got %v", err)
		}
	})

	t.Run("AbortErasesSecrets", func(t *testing.T) {
		s, err := NewKeygenSession(cs, ids[0], ids, 2)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if _, err := s.Round1(); err != nil {
			t.Fatalf("Round1 failed: %v", err)
		}
		s.Abort()
		if s.State() != DKGAborted {
			t.Fatalf("Expected aborted, got %s", s.State())
		}
		if s.polynomial != nil || s.ownShare != nil {
			t.Fatal("Abort left secret state behind")
		}
		if _, err := s.Round2(nil); !errors.Is(err, ErrSessionAborted) {
			t.Fatalf("Expected SessionAborted, got %v", err)
		}
	})

	t.Run("FinalizedIsTerminal", func(t *testing.T) {
		f := newKeygenFixture(t, 3, 2)
		inbox := f.round2(t)
		s := f.sessions[f.ids[0]]
		if _, _, err := s.Round3(inbox[f.ids[0]]); err != nil {
			t.Fatalf("Round3 failed: %v", err)
		}
		s.Abort()
		if s.State() != DKGFinalized {
			t.Fatalf("Abort must not undo a finalized session, state is %s", s.State())
		}
		if s.polynomial != nil || s.ownShare != nil {
			t.Fatal("Finalize left secret state behind")
		}
	})

	t.Run("StateNames", func(t *testing.T) {
		want := map[DKGState]string{
			DKGStart:      "start",
			DKGRound1Done: "round1_done",
			DKGRound2Done: "round2_done",
			DKGFinalized:  "finalized",
			DKGAborted:    "aborted",
		}
		for state, name := range want {
			if state.String() != name {
				t.Errorf("State %d: expected %q, got %q", state, name, state.String())
			}
		}
	})
}

func TestKeygenLargerGroups(t *testing.T) {
	cs := NewEd25519Ciphersuite()
	for _, tc := range []struct{ n, t int }{{5, 3}, {7, 4}} {
		ids := SequentialIdentifiers(cs.Curve(), tc.n)
		keyShares, pub := runKeygen(t, cs, ids, tc.t, nil)
		signers := ids[tc.n-tc.t:]
		sig := signWith(t, cs, keyShares, pub, signers, []byte("larger group"))
		if err := Verify(cs, pub.GroupPublicKey, []byte("larger group"), sig); err != nil {
			t.Fatalf("%d-of-%d signature did not verify: %v", tc.t, tc.n, err)
		}
	}
}
