package worker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
)

// MediaID derives the stable identifier a media file is indexed under.
func MediaID(mediaPath string) string {
	sum := md5.Sum([]byte(mediaPath))
	return hex.EncodeToString(sum[:])
}

// pointID is deterministic so re-indexing the same media upserts in place
// instead of accumulating duplicates.
func pointID(mediaID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s_para_%d", mediaID, index))).String()
}

// buildVectorPoints produces one point per summary entry. The embedded
// document pairs the entry summary with the transcript text it covers; the
// payload carries everything a citation needs.
func buildVectorPoints(mediaPath, title string, entries []model.SummaryEntry, segments []model.Segment) ([]adapter.VectorPoint, []string) {
	mediaID := MediaID(mediaPath)
	points := make([]adapter.VectorPoint, 0, len(entries))
	docs := make([]string, 0, len(entries))

	for _, e := range entries {
		text := segmentText(segments, e.StartTime, e.EndTime)
		doc := text
		if e.Summary != "" {
			doc = "Summary: " + e.Summary + "\nContent: " + text
		}
		points = append(points, adapter.VectorPoint{
			ID:         pointID(mediaID, e.Index),
			Text:       text,
			Title:      title,
			MediaPath:  mediaPath,
			MediaID:    mediaID,
			Summary:    e.Summary,
			StartTime:  e.StartTime,
			EndTime:    e.EndTime,
			SourceKind: "paragraph",
		})
		docs = append(docs, doc)
	}
	return points, docs
}

// segmentText joins the text of segments overlapping [start, end].
func segmentText(segments []model.Segment, start, end float64) string {
	var b strings.Builder
	for _, s := range segments {
		if s.EndTime < start || s.StartTime > end {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
