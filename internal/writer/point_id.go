package writer

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/SteelMorgan/iostat-loader/internal/domain"
)

// pointNamespace scopes point ids so they never collide with other SHA1 uuids
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("iostat-loader/point"))

// PointID returns a stable id for the series key (cell, disk, second).
// Re-importing the same archive yields the same ids, which lets a
// ReplacingMergeTree table collapse the duplicates.
func PointID(p *domain.Point) uuid.UUID {
	var b strings.Builder
	b.WriteString(p.Cell)
	b.WriteByte('|')
	b.WriteString(p.Disk)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(p.Time.Unix(), 10))
	return uuid.NewSHA1(pointNamespace, []byte(b.String()))
}
