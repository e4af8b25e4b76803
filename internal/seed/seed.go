// Package seed loads a starter course catalog from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dancetime/booking/internal/models"
	"github.com/dancetime/booking/internal/storage"
)

// CourseEntry is one course in the catalog file.
type CourseEntry struct {
	models.CourseDetails `yaml:",inline"`
	Classes              []models.Class `yaml:"classes"`
}

// Catalog is the top-level document of a seed file.
type Catalog struct {
	Courses []CourseEntry `yaml:"courses"`
}

// Parse decodes a catalog and rejects entries without a name. Unknown
// keys are errors so typos do not silently drop fields.
func Parse(r io.Reader) (Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	for i, c := range cat.Courses {
		if strings.TrimSpace(c.Name) == "" {
			return Catalog{}, fmt.Errorf("course %d: name is required", i)
		}
	}
	return cat, nil
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Apply inserts every catalog course, but only into an empty store. It
// returns how many courses were created.
func Apply(ctx context.Context, store storage.CourseStore, cat Catalog, logger zerolog.Logger) (int, error) {
	n, err := store.CountCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	if n > 0 {
		logger.Debug().Int("existing", n).Msg("courses present, skipping seed")
		return 0, nil
	}
	for i, c := range cat.Courses {
		course, err := store.CreateCourse(ctx, c.CourseDetails, c.Classes)
		if err != nil {
			return i, fmt.Errorf("create course %q: %w", c.Name, err)
		}
		logger.Info().Str("course_id", course.ID).Str("name", course.Name).Int("classes", len(course.Classes)).Msg("seeded course")
	}
	return len(cat.Courses), nil
}
