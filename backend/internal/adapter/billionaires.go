package adapter

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/record"
)

// Ranking attribute keys carried on person mentions.
const (
	AttrRank     = "rank"
	AttrNetWorth = "netWorth"
	AttrCountry  = "country"
	AttrIndustry = "industry"
)

// rankingRow is one ranking entry in page column order.
type rankingRow struct {
	Rank     string
	Name     string
	NetWorth string
	Country  string
	Industry string
}

func (r rankingRow) record() record.Record {
	attrs := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	set(AttrRank, r.Rank)
	if usd, ok := ParseNetWorth(r.NetWorth); ok {
		set(AttrNetWorth, strconv.FormatInt(usd, 10))
	}
	set(AttrCountry, r.Country)
	set(AttrIndustry, r.Industry)
	return record.PersonMention{RawName: r.Name, Attributes: attrs}
}

// ParseNetWorth converts "$23.4B", "+450M" or "12,345,678" to whole USD.
func ParseNetWorth(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer(",", "", "$", "", "+", "").Replace(s)
	if s == "" {
		return 0, false
	}
	multiplier := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "B":
		multiplier = 1e9
		s = s[:len(s)-1]
	case "M":
		multiplier = 1e6
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f * multiplier)), true
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseBillionairesHTML reads a saved ranking page. Both the div grid
// (div.table-row > div.table-cell) and a plain <table> are understood; the
// columns are rank, name, net worth, last change, YTD change, country,
// industry.
func ParseBillionairesHTML(r io.Reader, sourceFile string) (record.Batch, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceBillionaires, SourceFile: sourceFile}
	collect := func(cells *goquery.Selection) {
		if cells.Length() < 7 {
			return
		}
		text := func(i int) string { return clean(cells.Eq(i).Text()) }
		if _, err := strconv.Atoi(text(0)); err != nil {
			// header row
			return
		}
		row := rankingRow{
			Rank:     text(0),
			Name:     text(1),
			NetWorth: text(2),
			Country:  text(5),
			Industry: text(6),
		}
		if row.Name != "" {
			batch.Records = append(batch.Records, row.record())
		}
	}

	doc.Find("div.table-row").Each(func(_ int, s *goquery.Selection) {
		collect(s.Find("div.table-cell"))
	})
	if len(batch.Records) == 0 {
		doc.Find("table tr").Each(func(_ int, s *goquery.Selection) {
			collect(s.Find("td"))
		})
	}
	return batch, nil
}

// ParseBillionairesCSV reads the CSV export of the ranking with columns
// Rank, Name, NetWorth, LastChange, YTDChange, Country, Industry.
func ParseBillionairesCSV(r io.Reader, sourceFile string) (record.Batch, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1

	h, err := readHeader(rdr)
	if err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceBillionaires, SourceFile: sourceFile}
	for {
		row, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return record.Batch{}, err
		}
		entry := rankingRow{
			Rank:     h.get(row, "rank"),
			Name:     h.get(row, "name"),
			NetWorth: h.get(row, "networth", "net worth"),
			Country:  h.get(row, "country"),
			Industry: h.get(row, "industry"),
		}
		if entry.Name == "" {
			continue
		}
		batch.Records = append(batch.Records, entry.record())
	}
	return batch, nil
}
