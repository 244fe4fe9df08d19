package trackfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"
	"golang.org/x/mod/semver"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/trackprogress/pkg/model"
)

const (
	MinFormatVersion       = "v1.0.0"
	supportedMajorVersion = "v1"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported track file version")
	ErrUnknownFormat      = errors.New("unknown track file format")
	ErrTrackNotFound      = errors.New("track not found")
	ErrInvalidFile        = errors.New("invalid track file")
)

type (
	fileData struct {
		FormatVersion string      `yaml:"formatVersion" json:"formatVersion"`
		Tracks        []trackData `yaml:"tracks" json:"tracks"`
	}
	trackData struct {
		Name        string         `yaml:"name" json:"name"`
		Start       poseData       `yaml:"start" json:"start"`
		Checkpoints []waypointData `yaml:"checkpoints" json:"checkpoints"`
	}
	poseData struct {
		X        float64 `yaml:"x" json:"x"`
		Y        float64 `yaml:"y" json:"y"`
		Rotation float64 `yaml:"rotation" json:"rotation"`
	}
	waypointData struct {
		X      float64 `yaml:"x" json:"x"`
		Y      float64 `yaml:"y" json:"y"`
		Radius float64 `yaml:"radius" json:"radius"`
	}
)

// CheckVersion verifies the format version is a v1 version not older than
// MinFormatVersion. A missing "v" prefix is tolerated.
func CheckVersion(v string) error {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a valid version", ErrUnsupportedVersion, v)
	}
	if semver.Major(v) != supportedMajorVersion || semver.Compare(v, MinFormatVersion) < 0 {
		return fmt.Errorf("%w: %s (need %s.x >= %s)",
			ErrUnsupportedVersion, v, supportedMajorVersion, MinFormatVersion)
	}
	return nil
}

// LoadFile reads all tracks of a track file. The format is derived from the
// file extension (.yaml, .yml, .json).
func LoadFile(path string) ([]model.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(string(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

func ParseYAML(data []byte) ([]model.Track, error) {
	fd := fileData{}
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return fd.toTracks()
}

func ParseJSON(data string) ([]model.Track, error) {
	fd := fileData{}
	if err := oj.Unmarshal([]byte(data), &fd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return fd.toTracks()
}

// SelectJSON extracts a single track by name without converting the whole
// file.
func SelectJSON(data, name string) (model.Track, error) {
	obj, err := oj.ParseString(data)
	if err != nil {
		return model.Track{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	version := jp.MustParseString("$.formatVersion").First(obj)
	v, _ := version.(string)
	if err = CheckVersion(v); err != nil {
		return model.Track{}, err
	}

	path, err := jp.ParseString(fmt.Sprintf(`$.tracks[?(@.name == %q)]`, name))
	if err != nil {
		return model.Track{}, err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return model.Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	td := trackData{}
	if err = oj.Unmarshal([]byte(oj.JSON(res[0])), &td); err != nil {
		return model.Track{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return td.toTrack(), nil
}

// Find returns the track with the given name
func Find(tracks []model.Track, name string) (model.Track, error) {
	t, ok := lo.Find(tracks, func(t model.Track) bool { return t.Name == name })
	if !ok {
		return model.Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, name)
	}
	return t, nil
}

func (fd *fileData) toTracks() ([]model.Track, error) {
	if err := CheckVersion(fd.FormatVersion); err != nil {
		return nil, err
	}
	if len(fd.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks", ErrInvalidFile)
	}
	for _, t := range fd.Tracks {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: track without name", ErrInvalidFile)
		}
	}
	if dups := lo.FindDuplicatesBy(fd.Tracks,
		func(t trackData) string { return t.Name }); len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate track %s", ErrInvalidFile, dups[0].Name)
	}
	return lo.Map(fd.Tracks, func(t trackData, _ int) model.Track {
		return t.toTrack()
	}), nil
}

func (td *trackData) toTrack() model.Track {
	return model.Track{
		Name: td.Name,
		Start: model.Pose{
			Position: r2.Vec{X: td.Start.X, Y: td.Start.Y},
			Rotation: td.Start.Rotation,
		},
		Waypoints: lo.Map(td.Checkpoints, func(w waypointData, _ int) model.Waypoint {
			return model.Waypoint{Position: r2.Vec{X: w.X, Y: w.Y}, CaptureRadius: w.Radius}
		}),
	}
}
