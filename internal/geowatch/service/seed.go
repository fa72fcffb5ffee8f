package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/directory"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// Seed is the YAML zone file used to bootstrap a deployment:
//
//	employees:
//	  - id: E1
//	    name: Ana Torres
//	zones:
//	  - name: Office
//	    kind: office
//	    lat: "-2.1894"
//	    lon: "-79.8890"
//	    radius_m: 100
//	    hours: "08:00-18:00"
//	    assignments:
//	      - employee: E1
//	        primary: true
//	        tolerance_m: 20
//	        days: [mon, tue, wed, thu, fri]
type Seed struct {
	Employees []SeedEmployee `yaml:"employees"`
	Zones     []SeedZone     `yaml:"zones"`
}

type SeedEmployee struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Inactive bool   `yaml:"inactive"`
}

type SeedZone struct {
	Name        string           `yaml:"name"`
	Kind        string           `yaml:"kind"`
	Lat         string           `yaml:"lat"`
	Lon         string           `yaml:"lon"`
	RadiusM     float64          `yaml:"radius_m"`
	Hours       string           `yaml:"hours"`
	Inactive    bool             `yaml:"inactive"`
	Assignments []SeedAssignment `yaml:"assignments"`
}

type SeedAssignment struct {
	Employee   string   `yaml:"employee"`
	Primary    bool     `yaml:"primary"`
	ToleranceM float64  `yaml:"tolerance_m"`
	Days       []string `yaml:"days"`
	Window     string   `yaml:"window"`
}

func ParseSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Directory builds a static employee directory from the seed.
func (s Seed) Directory() *directory.Static {
	d := directory.NewStatic()
	for _, e := range s.Employees {
		d.Put(directory.Employee{ID: e.ID, DisplayName: e.Name, Active: !e.Inactive})
	}
	return d
}

type SeedReport struct {
	ZonesCreated       int
	ZonesUpdated       int
	AssignmentsCreated int
	AssignmentsUpdated int
}

// ApplySeed upserts the seed's zones (matched by name) and assignments
// (matched by employee and zone) through the registry's validated writes,
// so running it twice changes nothing.
func (r *ZoneRegistry) ApplySeed(ctx context.Context, seed Seed) (SeedReport, error) {
	var rep SeedReport

	zones, err := r.ListZones(ctx)
	if err != nil {
		return rep, err
	}
	byName := make(map[string]store.Zone, len(zones))
	for _, z := range zones {
		byName[z.Name] = z
	}

	existing, err := r.ListAssignments(ctx)
	if err != nil {
		return rep, err
	}
	type pair struct {
		emp  string
		zone int64
	}
	byPair := make(map[pair]store.Assignment, len(existing))
	for _, a := range existing {
		byPair[pair{a.EmployeeID, a.ZoneID}] = a
	}

	for _, sz := range seed.Zones {
		z, err := sz.zone()
		if err != nil {
			return rep, err
		}
		if prev, ok := byName[z.Name]; ok {
			z.ID = prev.ID
			rep.ZonesUpdated++
		} else {
			rep.ZonesCreated++
		}
		saved, err := r.SaveZone(ctx, z)
		if err != nil {
			return rep, fmt.Errorf("seed zone %q: %w", z.Name, err)
		}

		for _, sa := range sz.Assignments {
			a, err := sa.assignment(saved.ID)
			if err != nil {
				return rep, fmt.Errorf("seed zone %q: %w", z.Name, err)
			}
			if prev, ok := byPair[pair{a.EmployeeID, a.ZoneID}]; ok {
				a.ID = prev.ID
				rep.AssignmentsUpdated++
			} else {
				rep.AssignmentsCreated++
			}
			if _, err := r.SaveAssignment(ctx, a); err != nil {
				return rep, fmt.Errorf("seed assignment %s@%q: %w", a.EmployeeID, z.Name, err)
			}
		}
	}
	return rep, nil
}

func (sz SeedZone) zone() (store.Zone, error) {
	center, err := geo.ParsePoint(sz.Lat, sz.Lon)
	if err != nil {
		return store.Zone{}, fault.Policy("zone %q center: %v", sz.Name, err)
	}
	kind := store.ZoneKind(strings.ToLower(strings.TrimSpace(sz.Kind)))
	if kind == "" {
		kind = store.ZoneOther
	}
	hours, err := parseWindow(sz.Hours)
	if err != nil {
		return store.Zone{}, fault.Policy("zone %q hours: %v", sz.Name, err)
	}
	return store.Zone{
		Name:         strings.TrimSpace(sz.Name),
		Kind:         kind,
		Center:       center,
		RadiusMeters: sz.RadiusM,
		Hours:        hours,
		Active:       !sz.Inactive,
	}, nil
}

func (sa SeedAssignment) assignment(zoneID int64) (store.Assignment, error) {
	days, err := parseDays(sa.Days)
	if err != nil {
		return store.Assignment{}, err
	}
	window, err := parseWindow(sa.Window)
	if err != nil {
		return store.Assignment{}, fault.Policy("assignment window: %v", err)
	}
	return store.Assignment{
		EmployeeID:      strings.TrimSpace(sa.Employee),
		ZoneID:          zoneID,
		Primary:         sa.Primary,
		ToleranceMeters: sa.ToleranceM,
		Days:            days,
		Window:          window,
		Active:          true,
	}, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// parseDays accepts three-letter day names; no days means every day.
func parseDays(names []string) (store.DayMask, error) {
	if len(names) == 0 {
		return store.AllDays, nil
	}
	var days []time.Weekday
	for _, n := range names {
		d, ok := weekdays[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fault.Policy("unknown day %q", n)
		}
		days = append(days, d)
	}
	return store.DayMaskOf(days...), nil
}

// parseWindow parses "HH:MM-HH:MM"; empty means no window.
func parseWindow(s string) (*store.TimeWindow, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("want HH:MM-HH:MM, got %q", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(to)
	if err != nil {
		return nil, err
	}
	return &store.TimeWindow{StartMinute: start, EndMinute: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
