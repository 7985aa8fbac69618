package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"crypto-swarm/internal/agents"
	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/indicators"
	"crypto-swarm/internal/models"
)

// Directory names under the data root.
const (
	IndicatorsDir = "indicators"
	AgentsDir     = "agents"
	OutputsDir    = "outputs"
	ConsensusDir  = "consensus"
	BriefsDir     = "briefs"

	LatestBrief = "latest.md"
)

// FileStore keeps the working set as JSON, YAML and markdown files:
//
//	indicators/<key>/<date>.json
//	agents/<name>.json|.yaml|.yml
//	outputs/<key>/<date>.json
//	consensus/<date>.json
//	briefs/<date>.md, briefs/latest.md
type FileStore struct {
	root   string
	logger zerolog.Logger
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string, logger zerolog.Logger) *FileStore {
	return &FileStore{root: dir, logger: logger.With().Str("component", "store").Logger()}
}

// Root returns the data directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path joins elements under the data directory.
func (s *FileStore) Path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// subdirs lists the directories under dir in name order. A missing dir is
// empty.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// fileName makes a display name safe to use as one path element.
func fileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
}

// ============================================================================
// Indicators
// ============================================================================

// SaveIndicator writes one indicator reading for date.
func (s *FileStore) SaveIndicator(date string, ind models.Indicator) (string, error) {
	path := s.Path(IndicatorsDir, fileName(models.Key(ind.Name)), date+".json")
	if err := writeJSON(path, ind); err != nil {
		return "", apperr.NewDataError("indicator", date, ind.Name, err)
	}
	return path, nil
}

// LoadIndicators reads every indicator recorded for date. An indicator
// without a name takes the display name of its directory. Unreadable files
// are logged and skipped; no readable file at all is ErrNoIndicators.
func (s *FileStore) LoadIndicators(date string) (models.Indicators, error) {
	dirs, err := subdirs(s.Path(IndicatorsDir))
	if err != nil {
		return nil, apperr.NewDataError("indicators", date, "list directories", err)
	}

	out := make(models.Indicators)
	for _, dir := range dirs {
		path := s.Path(IndicatorsDir, dir, date+".json")
		var ind models.Indicator
		if err := readJSON(path, &ind); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable indicator")
			}
			continue
		}
		if ind.Name == "" {
			ind.Name = indicators.DisplayName(dir)
		}
		out[ind.Name] = ind
	}

	if len(out) == 0 {
		return out, apperr.NewDataError("indicators", date, "no indicator files", apperr.ErrNoIndicators)
	}
	s.logger.Debug().Int("count", len(out)).Str("date", date).Msg("Loaded indicators")
	return out, nil
}

// ============================================================================
// Agent specs
// ============================================================================

var specExts = []string{".json", ".yaml", ".yml"}

// SaveAgentSpec writes spec as agents/<name>.json, keeping its unknown
// fields.
func (s *FileStore) SaveAgentSpec(spec agents.Spec) (string, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return "", apperr.NewValidationError("name", spec.Name, "agent specification must include a name")
	}
	path := s.Path(AgentsDir, fileName(name)+".json")
	if err := writeJSON(path, spec); err != nil {
		return "", apperr.NewDataError("agent spec", "", name, err)
	}
	return path, nil
}

func decodeSpecFile(path string) (agents.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agents.Spec{}, err
	}
	var spec agents.Spec
	if strings.EqualFold(filepath.Ext(path), ".json") {
		spec, err = agents.DecodeSpecJSON(data)
	} else {
		spec, err = agents.DecodeSpecYAML(data)
	}
	if err != nil {
		return agents.Spec{}, err
	}
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// LoadAgentSpecs reads every agent spec in name order. Specs that cannot be
// decoded are logged and skipped.
func (s *FileStore) LoadAgentSpecs() ([]agents.Spec, error) {
	entries, err := os.ReadDir(s.Path(AgentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.NewDataError("agent specs", "", "list directory", err)
	}

	var specs []agents.Spec
	for _, e := range entries {
		if e.IsDir() || !isSpecFile(e.Name()) {
			continue
		}
		path := s.Path(AgentsDir, e.Name())
		spec, err := decodeSpecFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping invalid agent spec")
			continue
		}
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

func isSpecFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range specExts {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadAgentSpec finds a spec by file stem, then by declared name
// (case-insensitive).
func (s *FileStore) LoadAgentSpec(name string) (agents.Spec, error) {
	for _, ext := range specExts {
		path := s.Path(AgentsDir, fileName(name)+ext)
		if _, err := os.Stat(path); err == nil {
			return decodeSpecFile(path)
		}
	}

	specs, err := s.LoadAgentSpecs()
	if err != nil {
		return agents.Spec{}, err
	}
	for _, spec := range specs {
		if strings.EqualFold(spec.Name, name) || models.Key(spec.Name) == models.Key(name) {
			return spec, nil
		}
	}
	return agents.Spec{}, apperr.Wrapf(apperr.ErrAgentNotFound, "agent %q", name)
}

// ============================================================================
// Agent outputs
// ============================================================================

// SaveVote writes the agent's vote for date under its key directory.
func (s *FileStore) SaveVote(date string, vote models.Vote) (string, error) {
	path := s.Path(OutputsDir, fileName(models.Key(vote.AgentName)), date+".json")
	if err := writeJSON(path, vote); err != nil {
		return "", apperr.NewDataError("agent output", date, vote.AgentName, err)
	}
	return path, nil
}

// LoadVotes reads every agent output recorded for date, in directory order.
// A vote without an agent name takes its directory name.
func (s *FileStore) LoadVotes(date string) ([]models.Vote, error) {
	dirs, err := subdirs(s.Path(OutputsDir))
	if err != nil {
		return nil, apperr.NewDataError("agent outputs", date, "list directories", err)
	}

	var votes []models.Vote
	for _, dir := range dirs {
		path := s.Path(OutputsDir, dir, date+".json")
		var vote models.Vote
		if err := readJSON(path, &vote); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Error().Err(err).Str("path", path).Msg("Failed to load agent output")
			}
			continue
		}
		if vote.AgentName == "" {
			vote.AgentName = dir
		}
		votes = append(votes, vote)
	}

	if len(votes) == 0 {
		s.logger.Warn().Str("date", date).Msg("No agent outputs found")
	}
	return votes, nil
}

// ============================================================================
// Consensus and briefs
// ============================================================================

// SaveConsensus writes c as consensus/<date>.json.
func (s *FileStore) SaveConsensus(c *models.Consensus) (string, error) {
	path := s.Path(ConsensusDir, c.Date+".json")
	if err := writeJSON(path, c); err != nil {
		return "", apperr.NewDataError("consensus", c.Date, "write", err)
	}
	return path, nil
}

// LoadConsensus reads the consensus for date.
func (s *FileStore) LoadConsensus(date string) (*models.Consensus, error) {
	path := s.Path(ConsensusDir, date+".json")
	var c models.Consensus
	if err := readJSON(path, &c); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NewDataError("consensus", date, "not found", apperr.ErrDataNotFound)
		}
		return nil, apperr.NewDataError("consensus", date, "read", err)
	}
	return &c, nil
}

// SaveBrief writes the brief for date and refreshes latest.md.
func (s *FileStore) SaveBrief(date, markdown string) (string, error) {
	path := s.Path(BriefsDir, date+".md")
	if err := writeFile(path, []byte(markdown)); err != nil {
		return "", apperr.NewDataError("brief", date, "write", err)
	}
	if err := writeFile(s.Path(BriefsDir, LatestBrief), []byte(markdown)); err != nil {
		return "", apperr.NewDataError("brief", date, "write latest", err)
	}
	return path, nil
}

// LoadBrief reads the brief for date; an empty date reads latest.md.
func (s *FileStore) LoadBrief(date string) (string, error) {
	name := LatestBrief
	if date != "" {
		name = date + ".md"
	}
	data, err := os.ReadFile(s.Path(BriefsDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NewDataError("brief", date, "not found", apperr.ErrDataNotFound)
		}
		return "", apperr.NewDataError("brief", date, "read", err)
	}
	return string(data), nil
}

// ReadAgentSpecFile decodes a spec from an arbitrary JSON or YAML file.
func ReadAgentSpecFile(path string) (agents.Spec, error) {
	return decodeSpecFile(path)
}

// MarshalAgentSpecYAML renders spec as YAML, including unknown fields.
func MarshalAgentSpecYAML(spec agents.Spec) ([]byte, error) {
	asJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
