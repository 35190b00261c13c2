package distkey

import (
	"testing"

	"github.com/anoncred/credsvc/internal/group"
)

func bootstrapAll(t *testing.T, n, threshold uint8) ([][]*group.Element, [][]Share) {
	t.Helper()
	commitments := make([][]*group.Element, n)
	sharesByDealer := make([][]Share, n)
	for d := uint8(0); d < n; d++ {
		c, s, err := Bootstrap(n, threshold)
		if err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
		commitments[d] = c
		sharesByDealer[d] = s
	}
	return commitments, sharesByDealer
}

func TestBootstrapRejectsBadThreshold(t *testing.T) {
	if _, _, err := Bootstrap(3, 1); err != ErrThreshold {
		t.Fatalf("expected ErrThreshold for threshold=1, got %v", err)
	}
	if _, _, err := Bootstrap(3, 4); err != ErrThreshold {
		t.Fatalf("expected ErrThreshold for threshold>n, got %v", err)
	}
}

func TestVerifyShareAcceptsHonestDealer(t *testing.T) {
	const n, threshold = 3, 2
	commitments, sharesByDealer := bootstrapAll(t, n, threshold)

	for self := uint8(1); self <= n; self++ {
		for d := uint8(0); d < n; d++ {
			dealer := d + 1
			if dealer == self {
				continue
			}
			share := sharesByDealer[d][self-1]
			if err := VerifyShare(self, commitments[d], share); err != nil {
				t.Fatalf("participant %d rejected honest dealer %d: %v", self, dealer, err)
			}
		}
	}
}

func TestVerifyShareRejectsTamperedShare(t *testing.T) {
	const n, threshold = 3, 2
	commitments, sharesByDealer := bootstrapAll(t, n, threshold)

	tampered := sharesByDealer[0][1] // share for participant 2 from dealer 1
	bumped, err := group.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar failed: %v", err)
	}
	tampered.Value = tampered.Value.Add(bumped)

	if err := VerifyShare(2, commitments[0], tampered); err == nil {
		t.Fatal("expected verification failure for a tampered share")
	}
}

func TestCombineAndReconstructRecoverDealerSecrets(t *testing.T) {
	const n, threshold = 4, 3
	commitments, sharesByDealer := bootstrapAll(t, n, threshold)
	_ = commitments

	final := make([]Share, n)
	for self := uint8(1); self <= n; self++ {
		received := make([]Share, n)
		for d := uint8(0); d < n; d++ {
			received[d] = sharesByDealer[d][self-1]
		}
		combined, err := Combine(received, self)
		if err != nil {
			t.Fatalf("Combine failed for participant %d: %v", self, err)
		}
		final[self-1] = combined
	}

	// Any `threshold` of the `n` final shares must interpolate to the
	// same distributed secret.
	subset1 := final[:threshold]
	subset2 := append([]Share{final[0]}, final[n-threshold+1:]...)

	secret1, err := ReconstructSecret(subset1)
	if err != nil {
		t.Fatalf("ReconstructSecret failed: %v", err)
	}
	secret2, err := ReconstructSecret(subset2)
	if err != nil {
		t.Fatalf("ReconstructSecret failed: %v", err)
	}

	if !secret1.Scalar().Equal(secret2.Scalar()) {
		t.Fatal("distinct threshold subsets reconstructed different secrets")
	}
}

func TestEvaluatePartsAgreeWithDirectEvaluation(t *testing.T) {
	const n, threshold = 3, 2
	commitments, sharesByDealer := bootstrapAll(t, n, threshold)
	_ = commitments

	final := make([]Share, n)
	for self := uint8(1); self <= n; self++ {
		received := make([]Share, n)
		for d := uint8(0); d < n; d++ {
			received[d] = sharesByDealer[d][self-1]
		}
		combined, err := Combine(received, self)
		if err != nil {
			t.Fatalf("Combine failed: %v", err)
		}
		final[self-1] = combined
	}

	secret, err := ReconstructSecret(final[:threshold])
	if err != nil {
		t.Fatalf("ReconstructSecret failed: %v", err)
	}

	blinded, err := group.HashToGroup([]byte("distkey-test-token"), []byte("test-dst"))
	if err != nil {
		t.Fatalf("HashToGroup failed: %v", err)
	}

	direct := blinded.ScalarMult(secret.Scalar())

	peers := []uint8{1, 2}
	var parts []EvaluationPart
	for _, idx := range peers {
		parts = append(parts, EvaluatePart(final[idx-1], blinded, peers))
	}

	combinedEval, err := CombineParts(parts)
	if err != nil {
		t.Fatalf("CombineParts failed: %v", err)
	}

	if !direct.Equal(combinedEval) {
		t.Fatal("threshold evaluation did not agree with direct evaluation under the reconstructed secret")
	}
}

func TestEvaluateWithZeroShareRejectsMismatchedIndexes(t *testing.T) {
	k := Share{Index: 1, Value: mustRandomScalar(t)}
	z := Share{Index: 2, Value: mustRandomScalar(t)}
	blinded, err := group.HashToGroup([]byte("x"), []byte("dst"))
	if err != nil {
		t.Fatalf("HashToGroup failed: %v", err)
	}

	if _, err := EvaluateWithZeroShare(k, z, blinded, []byte("session"), []uint8{1}); err != ErrShareIndex {
		t.Fatalf("expected ErrShareIndex, got %v", err)
	}
}

func mustRandomScalar(t *testing.T) *group.Scalar {
	t.Helper()
	s, err := group.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar failed: %v", err)
	}
	return s
}
