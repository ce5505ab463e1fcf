package intent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/lexical"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

const defaultRankLimit = 5

var (
	metadataPhrases = []string{
		"what columns", "which columns", "list the columns", "list all columns", "list columns",
		"column names", "columns are available", "columns exist", "what fields", "which fields",
		"what data do you have", "what kind of data", "what type of data", "what information do you have",
		"describe the table", "describe the data", "describe the dataset", "table structure",
		"data dictionary", "schema",
	}

	countTerms   = []string{"how many", "count", "counts", "number of"}
	avgTerms     = []string{"average", "avg", "mean"}
	sumTerms     = []string{"total", "sum"}
	maxTerms     = []string{"maximum", "max", "highest", "largest", "longest"}
	minTerms     = []string{"minimum", "min", "lowest", "smallest", "shortest"}
	percentTerms = []string{"percent", "percentage", "percentages", "proportion"}

	descSuperlatives = []string{"most", "highest", "largest", "longest", "biggest"}
	ascSuperlatives  = []string{"least", "fewest", "lowest", "smallest", "shortest"}

	stateValues    = []string{"open", "closed", "pending", "resolved", "escalated", "in progress", "on hold", "reopened", "active", "inactive", "churned", "cancelled", "canceled"}
	priorityValues = []string{"low", "medium", "high", "urgent", "critical"}

	qualifyTerms = []string{"qualify", "qualifies", "qualified", "eligible", "eligibility", "within", "allowed"}

	grainAdjectives = map[string]TimeGrain{
		"daily": GrainDay, "weekly": GrainWeek, "monthly": GrainMonth, "quarterly": GrainQuarter, "yearly": GrainYear, "annually": GrainYear,
	}
	grainNouns = map[string]TimeGrain{
		"day": GrainDay, "date": GrainDay, "week": GrainWeek, "month": GrainMonth, "quarter": GrainQuarter, "year": GrainYear,
	}

	countNouns = map[string]bool{"count": true, "counts": true}
	countedOf  = map[string]bool{"distribution": true, "breakdown": true, "number": true, "count": true}

	articles = map[string]bool{"the": true, "a": true, "an": true, "each": true, "every": true}

	aggregateWords = map[string]bool{
		"average": true, "avg": true, "mean": true, "total": true, "sum": true, "maximum": true, "max": true,
		"minimum": true, "min": true, "count": true, "number": true, "highest": true, "lowest": true,
	}

	stopWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "of": true, "to": true, "in": true, "on": true,
		"for": true, "with": true, "that": true, "this": true, "these": true, "those": true, "it": true, "is": true,
		"are": true, "was": true, "were": true, "be": true, "been": true, "have": true, "has": true, "had": true,
		"do": true, "does": true, "did": true, "what": true, "which": true, "who": true, "how": true, "many": true,
		"much": true, "any": true, "all": true, "there": true, "their": true, "they": true, "them": true, "from": true,
		"about": true, "after": true, "before": true, "into": true, "than": true, "then": true, "will": true,
		"would": true, "could": true, "should": true, "only": true, "also": true, "within": true, "days": true,
		"day": true, "cent": true, "me": true, "my": true, "our": true, "your": true, "can": true,
	}

	leadingNonNames = map[string]bool{
		"does": true, "do": true, "did": true, "is": true, "are": true, "was": true, "were": true, "has": true,
		"have": true, "had": true, "can": true, "could": true, "will": true, "would": true, "should": true,
		"show": true, "list": true, "find": true, "give": true, "get": true, "what": true, "which": true,
		"who": true, "whose": true, "when": true, "where": true, "why": true, "how": true, "tell": true,
		"please": true, "display": true, "fetch": true, "count": true, "compare": true,
	}

	namePattern    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	quotedTerm     = regexp.MustCompile(`["“]([^"”\n]{2,40})["”]`)
	withinDaysRule = regexp.MustCompile(`within\s+(\d{1,4})\s+(?:calendar\s+|business\s+)?days?\b`)

	definitionMarkers = []string{" means ", " is defined as ", " are defined as ", " refers to ", " is considered ", " are considered "}
	nameColumns       = []string{"customer_name", "full_name", "name", "contact_name"}
	timeColumnHints   = []string{"created", "opened", "date"}
	ignoredSamples    = map[string]bool{"yes": true, "no": true, "true": true, "false": true, "none": true, "null": true, "n/a": true}
)

// Refine turns a question into a QueryIntent against relation. Document
// context supplies business terms and time windows. Validation failures are
// returned inside the intent.
func Refine(question string, relation schema.Relation, context string) QueryIntent {
	trimmed := strings.TrimSpace(question)
	out := QueryIntent{
		Kind:     KindExecutable,
		Question: trimmed,
		Table:    relation.Table,
	}
	if trimmed == "" {
		out.Err = &IntentError{Code: CodeEmptyQuestion, Message: "question is empty"}
		return out
	}

	text := lexical.Normalize(trimmed)
	if isMetadataQuestion(text) {
		out.Kind = KindMetadata
		return out
	}

	r := &refiner{
		question: trimmed,
		text:     text,
		words:    splitWords(trimmed),
		relation: relation,
		columns:  newColumnIndex(relation),
		intent:   &out,
		filtered: map[string]bool{},
	}
	if err := r.refine(context); err != nil {
		out.Err = err
	}
	return out
}

func isMetadataQuestion(text string) bool {
	for _, phrase := range metadataPhrases {
		if lexical.ContainsWord(text, phrase) {
			return true
		}
	}
	return false
}

type refiner struct {
	question string
	text     string
	words    []word
	relation schema.Relation
	columns  columnIndex
	intent   *QueryIntent
	filtered map[string]bool
	mention  []string
	// counted is the key column of the entity being counted, if any.
	counted string
}

type ranking struct {
	target     []string
	descending bool
	limit      int
}

func (r *refiner) refine(context string) *IntentError {
	if err := r.checkIdentifiers(); err != nil {
		return err
	}
	r.intent.BusinessTerms = businessTerms(context, r.words)

	if err := r.applyFilters(context); err != nil {
		return err
	}
	return r.applyShape()
}

// checkIdentifiers rejects snake_case tokens that are not columns.
func (r *refiner) checkIdentifiers() *IntentError {
	for _, token := range strings.FieldsFunc(r.question, isSeparator) {
		token = strings.Trim(strings.ToLower(token), "_")
		if !strings.Contains(token, "_") {
			continue
		}
		if !r.relation.HasColumn(token) {
			return &IntentError{
				Code:      CodeUnknownColumn,
				Message:   fmt.Sprintf("column %q does not exist in %s", token, r.relation.Table),
				Reference: token,
			}
		}
	}
	return nil
}

func (r *refiner) applyShape() *IntentError {
	agg := detectAggregation(r.text)
	percent := containsAnyWord(r.text, percentTerms) || strings.Contains(r.question, "%")
	rank, ranked := r.detectRanking()

	grain := r.detectGrain()
	if grain != GrainNone {
		column, err := r.timeColumn()
		if err != nil {
			return err
		}
		r.intent.TimeGrain = grain
		r.intent.TimeColumn = column
	}

	r.counted = r.countedEntity()
	groups, err := r.collectGroups(ranked, agg)
	if err != nil {
		return err
	}

	if ranked {
		r.intent.GroupBy = appendUnique(append([]string(nil), rank.target...), groups...)
		measures := r.numericMentions(r.intent.GroupBy)
		switch {
		case agg == AggCount || len(measures) == 0:
			r.intent.Aggregation = AggCount
			r.setCountTarget(rank.target)
		default:
			switch agg {
			case AggSum, AggAvg, AggMin:
				r.intent.Aggregation = agg
			default:
				r.intent.Aggregation = AggMax
			}
			r.intent.Measure = measures[0]
		}
		r.intent.OrderBy = r.intent.MetricAlias()
		r.intent.Descending = rank.descending
		r.intent.Limit = rank.limit
		r.intent.Percentages = percent
		return nil
	}

	r.intent.GroupBy = groups
	if agg == AggNone && (len(groups) > 0 || grain != GrainNone || (percent && len(r.intent.Filters) > 0)) {
		agg = AggCount
	}
	r.intent.Aggregation = agg

	switch agg {
	case AggNone:
		r.intent.Columns = r.projection()
	case AggCount:
		r.setCountTarget(nil)
	case AggSum, AggAvg, AggMin, AggMax:
		measures := r.numericMentions(groups)
		if len(measures) == 0 {
			return &IntentError{
				Code:      CodeMeasureRequired,
				Message:   fmt.Sprintf("%s needs a numeric column; available: %s", agg, strings.Join(r.measureCandidates(), ", ")),
				Reference: agg.String(),
			}
		}
		r.intent.Measure = measures[0]
	}

	switch {
	case r.intent.TimeGrain != GrainNone:
		r.intent.OrderBy = PeriodAlias
	case len(groups) > 0:
		r.intent.OrderBy = r.intent.MetricAlias()
		r.intent.Descending = true
	}
	r.intent.Percentages = percent && agg != AggNone
	return nil
}

func detectAggregation(text string) Aggregation {
	switch {
	case containsAnyWord(text, countTerms):
		return AggCount
	case containsAnyWord(text, avgTerms):
		return AggAvg
	case containsAnyWord(text, sumTerms):
		return AggSum
	case containsAnyWord(text, maxTerms):
		return AggMax
	case containsAnyWord(text, minTerms):
		return AggMin
	default:
		return AggNone
	}
}

func (r *refiner) detectRanking() (ranking, bool) {
	for i, w := range r.words {
		if w.lower != "top" && w.lower != "bottom" {
			continue
		}
		j := i + 1
		limit := 0
		if j < len(r.words) {
			if n, err := strconv.Atoi(r.words[j].lower); err == nil && n > 0 {
				limit = n
				j++
			}
		}
		if j >= len(r.words) {
			continue
		}
		target, entity := r.rankTarget(r.words[j].text)
		if target == nil || (limit == 0 && !entity) {
			continue
		}
		if limit == 0 {
			limit = defaultRankLimit
		}
		return ranking{target: target, descending: w.lower == "top", limit: limit}, true
	}

	if len(r.words) > 1 {
		lead := r.words[0].lower
		if lead == "which" || lead == "what" || lead == "who" {
			desc := containsAnyWord(r.text, descSuperlatives)
			asc := containsAnyWord(r.text, ascSuperlatives)
			if desc || asc {
				noun := r.words[1].text
				if lead == "who" {
					noun = "customer"
				}
				if target, _ := r.rankTarget(noun); target != nil {
					return ranking{target: target, descending: desc, limit: 1}, true
				}
			}
		}
	}
	return ranking{}, false
}

// rankTarget returns the grouping columns for a ranked noun and whether the
// noun named an entity.
func (r *refiner) rankTarget(noun string) ([]string, bool) {
	if key := r.entityKey(noun); key != "" {
		target := []string{key}
		if name := r.entityNameColumn(noun); name != "" {
			target = append(target, name)
		}
		return target, true
	}
	columns := r.columns.resolve([]string{noun})
	if len(columns) == 1 && r.columns.class(columns[0]) != schema.ClassNumeric {
		return columns, false
	}
	return nil, false
}

func (r *refiner) detectGrain() TimeGrain {
	for i, w := range r.words {
		if grain, ok := grainAdjectives[w.lower]; ok {
			return grain
		}
		if w.lower == "by" || w.lower == "per" || w.lower == "each" {
			j := r.skipArticles(i + 1)
			if j < len(r.words) {
				if grain, ok := grainNouns[r.words[j].text]; ok {
					return grain
				}
			}
		}
	}
	if lexical.ContainsTerm(r.text, "trend") || lexical.ContainsWord(r.text, "over time") {
		return GrainMonth
	}
	return GrainNone
}

func (r *refiner) timeColumn() (string, *IntentError) {
	for _, name := range r.mentions() {
		if r.columns.class(name) == schema.ClassTemporal {
			return name, nil
		}
	}
	for _, hint := range timeColumnHints {
		for _, name := range r.relation.Temporal {
			if strings.Contains(strings.ToLower(name), hint) {
				return name, nil
			}
		}
	}
	if len(r.relation.Temporal) > 0 {
		return r.relation.Temporal[0], nil
	}
	return "", &IntentError{
		Code:      CodeUnknownColumn,
		Message:   fmt.Sprintf("%s has no date or timestamp column for a time series", r.relation.Table),
		Reference: "date",
	}
}

func (r *refiner) collectGroups(ranked bool, agg Aggregation) ([]string, *IntentError) {
	var groups []string
	for i, w := range r.words {
		start := -1
		switch {
		case w.lower == "by" || w.lower == "per":
			start = i + 1
		case w.lower == "each" && i > 0 && r.words[i-1].lower == "for":
			start = i + 1
		case (w.lower == "distribution" || w.lower == "breakdown") && i+1 < len(r.words) && r.words[i+1].lower == "of":
			start = i + 2
		case (w.lower == "distribution" || w.lower == "breakdown") && i > 0:
			if columns := r.columns.resolve([]string{r.words[i-1].text}); len(columns) == 1 {
				groups = appendUnique(groups, columns[0])
			}
			continue
		default:
			continue
		}

		j := r.skipQualifiers(start)
		if j >= len(r.words) {
			continue
		}
		if _, ok := grainNouns[r.words[j].text]; ok {
			continue
		}
		if w.lower == "per" && agg == AggAvg && r.entityKey(r.words[j].text) != "" {
			continue
		}

		strict := true
		for j < len(r.words) {
			columns, consumed, err := r.groupTargetAt(j, strict)
			if err != nil {
				return nil, err
			}
			for _, column := range columns {
				if ranked && r.columns.class(column) == schema.ClassNumeric {
					continue
				}
				groups = appendUnique(groups, column)
			}
			j += consumed
			if consumed == 0 || j >= len(r.words) || r.words[j].lower != "and" {
				break
			}
			j = r.skipQualifiers(j + 1)
			strict = false
		}
	}
	return groups, nil
}

// groupTargetAt resolves the grouping target starting at word start and
// reports how many words it consumed. Unresolved targets are an error only
// when strict.
func (r *refiner) groupTargetAt(start int, strict bool) ([]string, int, *IntentError) {
	first := r.words[start]
	if r.isCountedNoun(start) {
		consumed := 1
		if start+1 < len(r.words) && countNouns[r.words[start+1].lower] {
			consumed++
		}
		return nil, consumed, nil
	}
	var ambiguous []string
	var ambiguousRef string
	for n := min(3, len(r.words)-start); n >= 1; n-- {
		phrase := make([]string, 0, n)
		for _, w := range r.words[start : start+n] {
			phrase = append(phrase, w.text)
		}
		columns := r.columns.resolve(phrase)
		switch {
		case len(columns) == 1:
			return columns, n, nil
		case len(columns) > 1 && ambiguous == nil:
			ambiguous = columns
			ambiguousRef = strings.Join(phrase, " ")
		}
	}
	if key := r.entityKey(first.text); key != "" {
		target := []string{key}
		if name := r.entityNameColumn(first.text); name != "" {
			target = append(target, name)
		}
		return target, 1, nil
	}
	if ambiguous != nil {
		return nil, 0, &IntentError{
			Code:      CodeAmbiguousColumn,
			Message:   fmt.Sprintf("%q matches several columns: %s", ambiguousRef, strings.Join(ambiguous, ", ")),
			Reference: ambiguousRef,
		}
	}
	if !strict || stopWords[first.lower] || isCapitalized(first.raw) {
		return nil, 0, nil
	}
	if _, err := strconv.Atoi(first.lower); err == nil {
		return nil, 0, nil
	}
	return nil, 0, &IntentError{
		Code:      CodeUnknownColumn,
		Message:   fmt.Sprintf("no column of %s matches %q", r.relation.Table, first.lower),
		Reference: first.lower,
	}
}

// countedEntity finds the entity a count is taken over: the noun in
// "how many tickets", "number of tickets", "distribution of tickets" or
// "ticket count".
func (r *refiner) countedEntity() string {
	for i, w := range r.words {
		key := r.entityKey(w.text)
		if key == "" {
			continue
		}
		if i+1 < len(r.words) && countNouns[r.words[i+1].lower] {
			return key
		}
		p := r.previousWord(i)
		if p < 0 {
			continue
		}
		switch prev := r.words[p].lower; {
		case prev == "many" && p > 0 && r.words[p-1].lower == "how":
			return key
		case prev == "of" && p > 0 && countedOf[r.words[p-1].lower]:
			return key
		}
	}
	return ""
}

// isCountedNoun reports whether the word at i names the counted entity and
// matches no column except that entity's key.
func (r *refiner) isCountedNoun(i int) bool {
	if r.counted == "" {
		return false
	}
	noun := r.words[i].text
	if !strings.EqualFold(r.entityKey(noun), r.counted) {
		return false
	}
	columns := r.columns.resolve([]string{noun})
	return len(columns) == 0 || (len(columns) == 1 && strings.EqualFold(columns[0], r.counted))
}

func (r *refiner) previousWord(i int) int {
	i--
	for i >= 0 && articles[r.words[i].lower] {
		i--
	}
	return i
}

func (r *refiner) skipArticles(i int) int {
	for i < len(r.words) && articles[r.words[i].lower] {
		i++
	}
	return i
}

// skipQualifiers skips articles and aggregate words such as "average".
func (r *refiner) skipQualifiers(i int) int {
	for i < len(r.words) && (articles[r.words[i].lower] || aggregateWords[r.words[i].lower]) {
		i++
	}
	return i
}

func (r *refiner) entityKey(noun string) string {
	if noun == "" {
		return ""
	}
	if column, ok := r.relation.Lookup(noun + "_id"); ok {
		return column.Name
	}
	return ""
}

func (r *refiner) entityNameColumn(noun string) string {
	if column, ok := r.relation.Lookup(noun + "_name"); ok {
		return column.Name
	}
	if !strings.EqualFold(r.relation.PrimaryKey, noun+"_id") {
		return ""
	}
	for _, candidate := range nameColumns {
		if column, ok := r.relation.Lookup(candidate); ok {
			return column.Name
		}
	}
	return ""
}

func (r *refiner) setCountTarget(exclude []string) {
	for _, w := range r.words {
		key := r.entityKey(w.text)
		if key == "" || containsFold(exclude, key) {
			continue
		}
		r.intent.Measure = key
		r.intent.CountDistinct = true
		return
	}
}

func (r *refiner) mentions() []string {
	if r.mention == nil {
		r.mention = r.columns.mentions(r.words)
	}
	return r.mention
}

func (r *refiner) numericMentions(exclude []string) []string {
	var out []string
	for _, name := range r.mentions() {
		if r.columns.class(name) != schema.ClassNumeric || isIdentifierColumn(name) || containsFold(exclude, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (r *refiner) measureCandidates() []string {
	var out []string
	for _, name := range r.relation.Numeric {
		if !isIdentifierColumn(name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

func (r *refiner) projection() []string {
	var columns []string
	for _, name := range r.mentions() {
		if r.filtered[name] {
			continue
		}
		columns = append(columns, name)
	}
	return columns
}

func (r *refiner) applyFilters(context string) *IntentError {
	r.stateFilter()
	r.priorityFilter()
	if err := r.sampleFilters(); err != nil {
		return err
	}
	r.nameFilters()
	if filter := r.recencyFilter(context); filter != nil {
		r.intent.Filters = append(r.intent.Filters, *filter)
		r.filtered[filter.Column] = true
	}
	return nil
}

func (r *refiner) addFilter(column string, values ...string) {
	for i := range r.intent.Filters {
		filter := &r.intent.Filters[i]
		if filter.Column == column && filter.Operator == OpEquals {
			filter.Values = appendUnique(filter.Values, values...)
			return
		}
	}
	r.intent.Filters = append(r.intent.Filters, Filter{Column: column, Operator: OpEquals, Values: appendUnique(nil, values...)})
	r.filtered[column] = true
}

func (r *refiner) stateFilter() {
	var found []string
	for _, value := range stateValues {
		if lexical.ContainsWord(r.text, value) {
			found = append(found, value)
		}
	}
	if len(found) == 0 {
		return
	}
	if column := r.stateColumn(found[0]); column != "" {
		r.addFilter(column, found...)
	}
}

func (r *refiner) stateColumn(value string) string {
	var sampled []string
	for _, name := range r.relation.Textual {
		if sampleContains(r.relation.Samples[name], value) {
			sampled = append(sampled, name)
		}
	}
	for _, name := range sampled {
		if isStatusLike(name) {
			return name
		}
	}
	if len(sampled) > 0 {
		return sampled[0]
	}
	for _, name := range r.relation.Textual {
		if isStatusLike(name) {
			return name
		}
	}
	return ""
}

func (r *refiner) priorityFilter() {
	column := ""
	for _, name := range r.relation.Textual {
		if strings.Contains(strings.ToLower(name), "priority") {
			column = name
			break
		}
	}
	if column == "" {
		return
	}
	explicit := lexical.ContainsWord(r.text, "priority")
	var found []string
	for _, value := range priorityValues {
		if !lexical.ContainsWord(r.text, value) {
			continue
		}
		if explicit || value == "urgent" || value == "critical" || sampleContains(r.relation.Samples[column], value) {
			found = append(found, value)
		}
	}
	if len(found) > 0 {
		r.addFilter(column, found...)
	}
}

func (r *refiner) sampleFilters() *IntentError {
	skip := make(map[string]bool, len(r.filtered))
	for column := range r.filtered {
		skip[column] = true
	}
	byValue := map[string][]string{}
	var order []string
	for _, name := range r.relation.Textual {
		if skip[name] || isNameLike(name) {
			continue
		}
		for _, sample := range r.relation.Samples[name] {
			value := lexical.Normalize(sample)
			if len(value) < 3 || ignoredSamples[value] || stopWords[value] || r.entityKey(lexical.Singular(value)) != "" {
				continue
			}
			if _, err := strconv.ParseFloat(value, 64); err == nil {
				continue
			}
			if !lexical.ContainsWord(r.text, value) {
				continue
			}
			if _, seen := byValue[value]; !seen {
				order = append(order, value)
			}
			byValue[value] = appendUnique(byValue[value], name)
		}
	}

	for _, value := range order {
		columns := byValue[value]
		column := ""
		if len(columns) == 1 {
			column = columns[0]
		} else {
			for _, candidate := range columns {
				if containsFold(r.mentions(), candidate) {
					column = candidate
					break
				}
			}
		}
		if column == "" {
			return &IntentError{
				Code:      CodeAmbiguousColumn,
				Message:   fmt.Sprintf("%q appears in several columns: %s", value, strings.Join(columns, ", ")),
				Reference: value,
			}
		}
		r.addFilter(column, value)
	}
	return nil
}

func (r *refiner) nameFilters() {
	column := r.nameColumn()
	if column == "" {
		return
	}
	for _, span := range namePattern.FindAllString(r.question, -1) {
		parts := strings.Fields(span)
		for len(parts) > 0 && leadingNonNames[strings.ToLower(parts[0])] {
			parts = parts[1:]
		}
		if len(parts) < 2 {
			continue
		}
		value := strings.ToLower(strings.Join(parts, " "))
		if len(r.columns.resolve(phraseWords(value))) > 0 || r.hasFilterValue(value) {
			continue
		}
		r.addFilter(column, value)
	}
}

func (r *refiner) nameColumn() string {
	for _, candidate := range nameColumns {
		if column, ok := r.relation.Lookup(candidate); ok && r.columns.class(column.Name) == schema.ClassTextual {
			return column.Name
		}
	}
	for _, name := range r.relation.Textual {
		if isNameLike(name) {
			return name
		}
	}
	return ""
}

func (r *refiner) hasFilterValue(value string) bool {
	for _, filter := range r.intent.Filters {
		if containsFold(filter.Values, value) {
			return true
		}
	}
	return false
}

// recencyFilter applies a "within N days" window stated by the context when
// the question asks about qualification and shares a term with that sentence.
func (r *refiner) recencyFilter(context string) *Filter {
	if strings.TrimSpace(context) == "" || !containsAnyWord(r.text, qualifyTerms) {
		return nil
	}
	significant := map[string]bool{}
	for _, w := range r.words {
		if len(w.text) >= 4 && !stopWords[w.lower] && !stopWords[w.text] {
			significant[w.text] = true
		}
	}
	for _, sentence := range splitSentences(context) {
		lower := lexical.Normalize(sentence)
		match := withinDaysRule.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		shared := false
		for _, w := range phraseWords(lower) {
			if significant[w] {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		days, err := strconv.Atoi(match[1])
		if err != nil || days <= 0 {
			continue
		}
		column, intentErr := r.timeColumn()
		if intentErr != nil {
			return nil
		}
		return &Filter{Column: column, Operator: OpWithinDays, Days: days}
	}
	return nil
}

func businessTerms(context string, words []word) []string {
	if strings.TrimSpace(context) == "" {
		return nil
	}
	candidates := map[string]bool{}
	add := func(value string) {
		parts := lexical.Words(value)
		for len(parts) > 0 && articles[parts[0]] {
			parts = parts[1:]
		}
		if len(parts) == 0 || len(parts) > 4 {
			return
		}
		candidates[strings.Join(parts, " ")] = true
	}

	for _, match := range quotedTerm.FindAllStringSubmatch(context, -1) {
		add(match[1])
	}
	for _, sentence := range splitSentences(context) {
		padded := " " + lexical.Normalize(sentence) + " "
		for _, marker := range definitionMarkers {
			idx := strings.Index(padded, marker)
			if idx < 0 {
				continue
			}
			head := strings.Fields(padded[:idx])
			if len(head) > 3 {
				head = head[len(head)-3:]
			}
			add(strings.Join(head, " "))
		}
		if colon := strings.Index(sentence, ":"); colon > 0 {
			if head := strings.Fields(sentence[:colon]); len(head) <= 4 {
				add(strings.Join(head, " "))
			}
		}
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.text
	}
	var terms []string
	for candidate := range candidates {
		if indexSeq(texts, phraseWords(candidate)) >= 0 {
			terms = append(terms, candidate)
		}
	}
	sort.Strings(terms)
	return terms
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '\n', ';':
			return true
		default:
			return false
		}
	})
}

func containsAnyWord(text string, terms []string) bool {
	for _, term := range terms {
		if lexical.ContainsWord(text, term) {
			return true
		}
	}
	return false
}

func sampleContains(samples []string, value string) bool {
	for _, sample := range samples {
		if strings.EqualFold(strings.TrimSpace(sample), value) {
			return true
		}
	}
	return false
}

func isStatusLike(name string) bool {
	lower := strings.ToLower(name)
	return lower == "status" || lower == "state" || strings.HasSuffix(lower, "_status") || strings.HasSuffix(lower, "_state")
}

func isNameLike(name string) bool {
	lower := strings.ToLower(name)
	return lower == "name" || strings.HasSuffix(lower, "_name")
}

func isCapitalized(value string) bool {
	return value != "" && value[0] >= 'A' && value[0] <= 'Z'
}
