package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"

	"github.com/aprsworld/ingestd/pkg/cache"
)

// compassAxes are the four cardinal words getDirectionByCourse composes
// diagonals from (original_source/src/Store.cpp:739-752).
var compassAxes = [4]string{"north", "east", "south", "west"}

// directionWord reproduces getDirectionByCourse's asymmetric two-axis
// composition: course is bucketed into 16 steps of 22.5 degrees, a bucket
// on a 4-step boundary is a bare cardinal, any other bucket composes a
// hyphenated "<primary>-<secondary>" diagonal from compassAxes.
func directionWord(course float64) string {
	rounded := int(math.Round(course/22.5)) % 16
	if rounded < 0 {
		rounded += 16
	}

	if rounded%4 == 0 {
		return compassAxes[rounded/4]
	}

	first := compassAxes[2*((((rounded/4)+1)%4)/2)]
	second := compassAxes[1+2*(rounded/8)]
	return first + "-" + second
}

// iconCacheKey is MD5(symbolTable+symbolCode), per SPEC_FULL.md's
// supplemented "MD5-keyed icon cache key" decision.
func iconCacheKey(symbolTable, symbolCode string) string {
	sum := md5.Sum([]byte(symbolTable + symbolCode))
	return hex.EncodeToString(sum[:])
}

// packIcon/unpackIcon implement the cache value layout "id,pa,ic,dir"
// (spec.md §4.4 "Icon resolution differs").
func packIcon(id, image string, directional bool) string {
	dir := "N"
	if directional {
		dir = "Y"
	}
	return strings.Join([]string{id, image, "", dir}, ",")
}

func unpackIcon(packed string) (id, image string, directional bool, ok bool) {
	fields := strings.SplitN(packed, ",", 4)
	if len(fields) != 4 {
		return "", "", false, false
	}
	return fields[0], fields[1], fields[3] == "Y", true
}

// rewriteForCourse applies the course-dependent image rewrite: replace the
// trailing ".png" with "-<direction-word>.png" under a "compass/" subpath
// (spec.md §4.4).
func rewriteForCourse(image string, course float64) string {
	dir := filepathDirAndBase(image)
	word := directionWord(course)
	base := strings.TrimSuffix(dir.base, ".png")
	return joinPath(dir.dir, "compass", base+"-"+word+".png")
}

type splitPath struct {
	dir  string
	base string
}

func filepathDirAndBase(p string) splitPath {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return splitPath{dir: "", base: p}
	}
	return splitPath{dir: p[:idx], base: p[idx+1:]}
}

func joinPath(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// GetIconID resolves the icon row for a symbol table/code pair, rewriting
// the image path for course when the icon is direction-dependent. It
// returns the icon id and the (possibly course-rewritten) image path.
func (s *Store) GetIconID(ctx context.Context, symbolTable, symbolCode string, course float64) (iconID, image string, ok bool) {
	namespace := cache.NamespaceIcon
	key := iconCacheKey(symbolTable, symbolCode)

	s.stats.try(namespace)

	if packed, found, _ := s.cache.Get(ctx, namespace, key); found {
		id, img, directional, valid := unpackIcon(packed)
		if valid {
			s.stats.hit(namespace)
			if directional {
				img = rewriteForCourse(img, course)
			}
			return id, img, true
		}
	}

	found, row, err := s.db.LookupIcon(ctx, symbolTable, symbolCode, course)
	if err != nil || !found {
		s.stats.failed(namespace)
		return "", "", false
	}
	s.stats.miss(namespace)

	packed := packIcon(row.ID, row.Image, row.Directional)
	s.cache.Put(ctx, namespace, key, packed, s.defaultTTL)

	image = row.Image
	if row.Directional {
		image = rewriteForCourse(image, course)
	}
	return row.ID, image, true
}
