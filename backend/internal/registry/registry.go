// Package registry resolves raw person and company mentions to stable
// canonical ids.
//
// A Registry belongs to exactly one ingestion run and is not safe for
// concurrent use. Persons resolve along two paths:
//
//   - authoritative: a mention carrying an external id maps to the entry
//     whose id is that external id, creating it on first sight. These
//     entries never take part in fuzzy matching.
//   - by name: a normalized name equal to the canonical key or an alias key
//     of a non-authoritative entry resolves to it directly. Otherwise the
//     name is compared with every non-authoritative canonical key; the best
//     scoring candidate that clears the Matcher wins and equal scores go to
//     the entry created first. No candidate means a new entry with a
//     generated id.
//
// Alias keys take part in exact lookups only, so a short alias such as
// "kuok" cannot pull unrelated names into an entry.
//
// The canonical display name is whatever the creating mention said; later
// mentions only add aliases. Creation order is carried on each entry as Seq
// and persisted, so a restarted run breaks ties the same way.
package registry

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/matcher"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
	"uhnw-graph/backend/pkg/logger"
)

// IDGenerator returns a fresh id for the given prefix.
type IDGenerator func(prefix string) string

// PersonQuery carries everything a mention knows about a person.
type PersonQuery struct {
	RawName           string
	CanonicalOverride string
	AliasHints        []string
	ExternalID        string
	Gender            string
	Attributes        map[string]string
}

// Stats counts registry outcomes since construction.
type Stats struct {
	PersonsCreated   int
	PersonsMerged    int
	CompaniesCreated int
	CompaniesMerged  int
	Ambiguous        int
}

// Registry owns the canonical person and company entries of a run.
type Registry struct {
	personMatcher  matcher.Matcher
	companyMatcher matcher.Matcher
	logger         *zap.Logger
	newID          IDGenerator
	onAmbiguous    func(*apperrors.ErrAmbiguousMatch)

	persons    []*PersonEntry
	personByID map[string]*PersonEntry
	byExternal map[string]*PersonEntry
	byKey      map[string]*PersonEntry // canonical keys of non-authoritative entries
	byAliasKey map[string]*PersonEntry

	companies    []*CompanyEntry
	companyByID  map[string]*CompanyEntry
	companyByKey map[string]*CompanyEntry

	seq   int64
	stats Stats
}

// New creates an empty registry. A nil matcher falls back to
// matcher.DefaultPolicy(); a nil logger to the global logger.
func New(personMatcher, companyMatcher matcher.Matcher, log *zap.Logger) *Registry {
	if personMatcher == nil {
		personMatcher = matcher.DefaultPolicy()
	}
	if companyMatcher == nil {
		companyMatcher = matcher.DefaultPolicy()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Registry{
		personMatcher:  personMatcher,
		companyMatcher: companyMatcher,
		logger:         log.Named("registry"),
		newID:          GenerateID,
		personByID:     make(map[string]*PersonEntry),
		byExternal:     make(map[string]*PersonEntry),
		byKey:          make(map[string]*PersonEntry),
		byAliasKey:     make(map[string]*PersonEntry),
		companyByID:    make(map[string]*CompanyEntry),
		companyByKey:   make(map[string]*CompanyEntry),
	}
}

// GenerateID returns prefix followed by 12 random hex characters.
func GenerateID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:constants.GeneratedIDHexLen]
}

// SetIDGenerator replaces the id source, mainly for tests.
func (r *Registry) SetIDGenerator(gen IDGenerator) {
	if gen != nil {
		r.newID = gen
	}
}

// OnAmbiguous registers a callback fired whenever more than one entry
// qualified for a fuzzy match.
func (r *Registry) OnAmbiguous(fn func(*apperrors.ErrAmbiguousMatch)) {
	r.onAmbiguous = fn
}

// Stats returns outcome counters.
func (r *Registry) Stats() Stats {
	return r.stats
}

// Persons returns all person entries in creation order.
func (r *Registry) Persons() []*PersonEntry {
	return append([]*PersonEntry(nil), r.persons...)
}

// Companies returns all company entries in creation order.
func (r *Registry) Companies() []*CompanyEntry {
	return append([]*CompanyEntry(nil), r.companies...)
}

// Person looks up an entry by id.
func (r *Registry) Person(id string) (*PersonEntry, bool) {
	e, ok := r.personByID[id]
	return e, ok
}

// Company looks up an entry by id.
func (r *Registry) Company(id string) (*CompanyEntry, bool) {
	e, ok := r.companyByID[id]
	return e, ok
}

// ResolvePerson maps a mention to its canonical entry, creating or merging
// as needed. It fails only when the mention has nothing to resolve.
func (r *Registry) ResolvePerson(q PersonQuery) (string, *PersonEntry, error) {
	raw := strings.TrimSpace(q.RawName)
	override := strings.TrimSpace(q.CanonicalOverride)
	name := override
	if name == "" {
		name = raw
	}

	if q.ExternalID != "" {
		return r.resolveAuthoritative(q.ExternalID, name, raw, q)
	}

	key := matcher.Normalize(name)
	if key == "" {
		return "", nil, apperrors.NewMalformedRecord("person_mention", "raw_name")
	}

	entry := r.exactPerson(key)
	if entry == nil {
		entry = r.findPerson(key)
	}
	if entry == nil {
		entry = r.newPerson(r.newUniqueID(constants.PersonIDPrefix), name, "", 0)
		r.stats.PersonsCreated++
		r.logger.Debug("Person created",
			zap.String("person_id", entry.ID),
			zap.String("name", name),
		)
	} else {
		r.stats.PersonsMerged++
	}
	r.absorb(entry, raw, override, q)
	return entry.ID, entry, nil
}

func (r *Registry) resolveAuthoritative(externalID, name, raw string, q PersonQuery) (string, *PersonEntry, error) {
	if entry, ok := r.byExternal[externalID]; ok {
		r.stats.PersonsMerged++
		r.absorb(entry, raw, strings.TrimSpace(q.CanonicalOverride), q)
		return entry.ID, entry, nil
	}

	if name == "" {
		name = externalID
	}
	entry := r.newPerson(externalID, name, externalID, 0)
	r.stats.PersonsCreated++
	r.absorb(entry, raw, strings.TrimSpace(q.CanonicalOverride), q)
	r.logger.Debug("Authoritative person created",
		zap.String("person_id", entry.ID),
		zap.String("name", name),
	)
	return entry.ID, entry, nil
}

// absorb folds the names, hints and attributes of a mention into entry.
func (r *Registry) absorb(entry *PersonEntry, raw, override string, q PersonQuery) {
	for _, hint := range q.AliasHints {
		r.addPersonAlias(entry, strings.TrimSpace(hint))
	}
	r.addPersonAlias(entry, override)
	r.addPersonAlias(entry, raw)
	if entry.Gender == "" && q.Gender != "" {
		entry.Gender = q.Gender
	}
	for k, v := range q.Attributes {
		entry.addAttribute(k, v)
	}
}

func (r *Registry) addPersonAlias(entry *PersonEntry, alias string) {
	if !entry.addAlias(alias) || entry.Authoritative() {
		return
	}
	key := matcher.Normalize(alias)
	if key == "" || key == entry.Key {
		return
	}
	indexPerson(r.byAliasKey, key, entry)
}

// indexPerson maps key to entry unless an earlier-created entry holds it.
func indexPerson(index map[string]*PersonEntry, key string, entry *PersonEntry) {
	if held, ok := index[key]; ok && held.seq <= entry.seq {
		return
	}
	index[key] = entry
}

// exactPerson looks key up among canonical keys, then alias keys.
func (r *Registry) exactPerson(key string) *PersonEntry {
	if e, ok := r.byKey[key]; ok {
		return e
	}
	return r.byAliasKey[key]
}

// findPerson returns the best fuzzy candidate for key among the canonical
// keys of non-authoritative entries, or nil.
func (r *Registry) findPerson(key string) *PersonEntry {
	var (
		best       *PersonEntry
		bestScore  float64
		candidates []string
	)
	for _, e := range r.persons {
		if e.Authoritative() {
			continue
		}
		score, ok := r.personMatcher.Match(key, e.Key)
		if !ok {
			continue
		}
		candidates = append(candidates, e.ID)
		if better(score, e.seq, best == nil, bestScore, seqOf(best)) {
			best, bestScore = e, score
		}
	}
	if len(candidates) > 1 {
		r.reportAmbiguous(key, best.ID, candidates)
	}
	return best
}

// better implements the tie-break: highest score, then earliest creation.
func better(score float64, seq int64, noBest bool, bestScore float64, bestSeq int64) bool {
	if noBest {
		return true
	}
	if score != bestScore {
		return score > bestScore
	}
	return seq < bestSeq
}

func seqOf(e *PersonEntry) int64 {
	if e == nil {
		return 0
	}
	return e.seq
}

func companySeqOf(e *CompanyEntry) int64 {
	if e == nil {
		return 0
	}
	return e.seq
}

// nextSeq returns seq when it is a stored creation order, else the next
// fresh one. The counter always stays above every seq handed out.
func (r *Registry) nextSeq(seq int64) int64 {
	if seq <= 0 {
		seq = r.seq + 1
	}
	if seq > r.seq {
		r.seq = seq
	}
	return seq
}

func (r *Registry) newPerson(id, name, externalID string, seq int64) *PersonEntry {
	entry := &PersonEntry{
		ID:         id,
		Canonical:  name,
		Key:        matcher.Normalize(name),
		ExternalID: externalID,
		aliases:    make(map[string]struct{}),
		seq:        r.nextSeq(seq),
	}
	r.persons = append(r.persons, entry)
	r.personByID[id] = entry
	if externalID != "" {
		r.byExternal[externalID] = entry
	} else if entry.Key != "" {
		indexPerson(r.byKey, entry.Key, entry)
	}
	return entry
}

// ResolveCompany maps a raw company name to its canonical id.
func (r *Registry) ResolveCompany(rawName string) (string, error) {
	name := strings.TrimSpace(rawName)
	key := matcher.Normalize(name)
	if key == "" {
		return "", apperrors.NewMalformedRecord("company_mention", "raw_name")
	}

	if e, ok := r.companyByKey[key]; ok {
		r.stats.CompaniesMerged++
		return e.ID, nil
	}

	var (
		best       *CompanyEntry
		bestScore  float64
		candidates []string
	)
	for _, e := range r.companies {
		score, ok := r.companyMatcher.Match(key, e.Key)
		if !ok {
			continue
		}
		candidates = append(candidates, e.ID)
		if better(score, e.seq, best == nil, bestScore, companySeqOf(best)) {
			best, bestScore = e, score
		}
	}
	if len(candidates) > 1 {
		r.reportAmbiguous(key, best.ID, candidates)
	}
	if best != nil {
		r.stats.CompaniesMerged++
		return best.ID, nil
	}

	entry := r.newCompany(r.newUniqueID(constants.CompanyIDPrefix), name, 0)
	r.stats.CompaniesCreated++
	r.logger.Debug("Company created",
		zap.String("company_id", entry.ID),
		zap.String("name", name),
	)
	return entry.ID, nil
}

func (r *Registry) newCompany(id, name string, seq int64) *CompanyEntry {
	entry := &CompanyEntry{ID: id, Name: name, Key: matcher.Normalize(name), seq: r.nextSeq(seq)}
	r.companies = append(r.companies, entry)
	r.companyByID[id] = entry
	if held, taken := r.companyByKey[entry.Key]; !taken || entry.seq < held.seq {
		r.companyByKey[entry.Key] = entry
	}
	return entry
}

func (r *Registry) newUniqueID(prefix string) string {
	for {
		id := r.newID(prefix)
		_, personTaken := r.personByID[id]
		_, companyTaken := r.companyByID[id]
		if !personTaken && !companyTaken {
			return id
		}
	}
}

func (r *Registry) reportAmbiguous(key, chosen string, candidates []string) {
	r.stats.Ambiguous++
	amb := apperrors.NewAmbiguousMatch(key, chosen, candidates)
	r.logger.Info("Ambiguous match resolved",
		zap.String("key", key),
		zap.String("chosen", chosen),
		zap.Strings("candidates", candidates),
	)
	if r.onAmbiguous != nil {
		r.onAmbiguous(amb)
	}
}

// Rehydrate seeds the registry with entities already in the store so a
// restarted run keeps resolving to the same ids. Entries are added in stored
// creation order; those without one follow in the order given. Ids already
// present are skipped.
func (r *Registry) Rehydrate(persons []state.Person, companies []state.Company) {
	persons = append([]state.Person(nil), persons...)
	sort.SliceStable(persons, func(i, j int) bool { return seqLess(persons[i].Seq, persons[j].Seq) })
	companies = append([]state.Company(nil), companies...)
	sort.SliceStable(companies, func(i, j int) bool { return seqLess(companies[i].Seq, companies[j].Seq) })

	for _, p := range persons {
		if p.ID == "" || p.Name == "" {
			continue
		}
		if _, ok := r.personByID[p.ID]; ok {
			continue
		}
		if p.ExternalID != "" {
			if _, ok := r.byExternal[p.ExternalID]; ok {
				continue
			}
		}
		entry := r.newPerson(p.ID, p.Name, p.ExternalID, p.Seq)
		entry.Gender = p.Gender
		for k, values := range p.Attributes {
			for _, v := range values {
				entry.addAttribute(k, v)
			}
		}
		for _, alias := range p.Aliases {
			r.addPersonAlias(entry, alias)
		}
	}
	for _, c := range companies {
		if c.ID == "" || c.Name == "" {
			continue
		}
		if _, ok := r.companyByID[c.ID]; ok {
			continue
		}
		r.newCompany(c.ID, c.Name, c.Seq)
	}
	r.logger.Info("Registry rehydrated",
		zap.Int("persons", len(r.persons)),
		zap.Int("companies", len(r.companies)),
	)
}

// seqLess orders stored sequences ascending with unsequenced entries last.
func seqLess(a, b int64) bool {
	if a <= 0 {
		return false
	}
	return b <= 0 || a < b
}
