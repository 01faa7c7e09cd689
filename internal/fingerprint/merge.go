package fingerprint

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
	"tracklink/internal/repositories"
)

// Merger collapses two fingerprint records believed to describe the same
// recording into one. Merging is one-way: the loser's tracks are re-pointed
// at the winner and the loser is deleted. Records are never split again.
type Merger struct {
	fingerprints repositories.FingerprintRepository
	sources      repositories.TrackSourceRepository
}

func NewMerger(fingerprints repositories.FingerprintRepository, sources repositories.TrackSourceRepository) *Merger {
	return &Merger{fingerprints: fingerprints, sources: sources}
}

// Merge combines two fingerprint records and returns the surviving id.
// Idempotent: equal ids, or a pair where one side was already merged away,
// is a no-op resolving to the record that still exists.
func (m *Merger) Merge(ctx context.Context, a, b primitive.ObjectID) (primitive.ObjectID, error) {
	if a == b {
		return a, nil
	}

	fpA, err := m.fingerprints.FindByID(ctx, a)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("loading fingerprint %s: %w", a.Hex(), err)
	}
	fpB, err := m.fingerprints.FindByID(ctx, b)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("loading fingerprint %s: %w", b.Hex(), err)
	}

	// a missing side means an earlier merge already consumed it
	switch {
	case fpA == nil && fpB == nil:
		return primitive.NilObjectID, fmt.Errorf("neither fingerprint %s nor %s exists", a.Hex(), b.Hex())
	case fpA == nil:
		return b, nil
	case fpB == nil:
		return a, nil
	}

	winner, loser := fpA, fpB
	pa, pb := mergePriority(fpA), mergePriority(fpB)
	if pb > pa || (pb == pa && fpB.CreatedAt.Before(fpA.CreatedAt)) {
		winner, loser = fpB, fpA
	}

	fillMissing(winner, loser)
	winner.MatchCount += loser.MatchCount
	if loser.LastMatchedAt != nil &&
		(winner.LastMatchedAt == nil || loser.LastMatchedAt.After(*winner.LastMatchedAt)) {
		winner.LastMatchedAt = loser.LastMatchedAt
	}

	if err := m.fingerprints.Update(ctx, winner); err != nil {
		return primitive.NilObjectID, fmt.Errorf("saving merged fingerprint: %w", err)
	}
	moved, err := m.sources.ReassignFingerprint(ctx, loser.ID, winner.ID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("re-pointing tracks: %w", err)
	}
	if err := m.fingerprints.Delete(ctx, loser.ID); err != nil {
		return primitive.NilObjectID, fmt.Errorf("deleting merged fingerprint: %w", err)
	}

	slog.Info("merged fingerprints",
		"winner", winner.ID.Hex(),
		"loser", loser.ID.Hex(),
		"tracksMoved", moved)
	return winner.ID, nil
}

// mergePriority ranks a record for winner selection. Later-created records
// lose ties, so identifiers accumulate on the oldest record.
func mergePriority(fp *models.Fingerprint) int {
	p := 0
	if fp.MBID != "" {
		p |= 1 << 4
	}
	if fp.BPM != 0 {
		p |= 1 << 3
	}
	if fp.Key != "" {
		p |= 1 << 2
	}
	if len(fp.ISRCs) > 0 {
		p |= 1 << 1
	}
	return p
}

// fillMissing copies src's populated fields into dst's empty ones. Winner
// data always survives; ISRC sets union.
func fillMissing(dst, src *models.Fingerprint) {
	if dst.MBID == "" {
		dst.MBID = src.MBID
	}
	dst.AddISRCs(src.ISRCs)
	if dst.Chromaprint == "" {
		dst.Chromaprint = src.Chromaprint
	}
	if dst.BPM == 0 {
		dst.BPM = src.BPM
	}
	if dst.Key == "" {
		dst.Key = src.Key
		dst.Mode = src.Mode
	}
	if dst.ShazamID == "" {
		dst.ShazamID = src.ShazamID
	}
	if dst.ShazamTitle == "" {
		dst.ShazamTitle = src.ShazamTitle
	}
	if dst.ShazamArtist == "" {
		dst.ShazamArtist = src.ShazamArtist
	}
	if dst.ShazamAlbum == "" {
		dst.ShazamAlbum = src.ShazamAlbum
	}
	if dst.ShazamGenre == "" {
		dst.ShazamGenre = src.ShazamGenre
	}
	if dst.ShazamURI == "" {
		dst.ShazamURI = src.ShazamURI
	}
	if dst.ShazamCoverURL == "" {
		dst.ShazamCoverURL = src.ShazamCoverURL
	}
}
