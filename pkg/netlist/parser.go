package netlist

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Deck is a parsed netlist: elements, models and analysis directives.
type Deck struct {
	Title    string
	Elements []Element
	Models   map[string]Model
	Nodes    map[string]int // Node name and order of appearance

	OP   bool
	DC   *DCParam
	Tran *TranParam
}

type DCParam struct {
	Source    string
	Start     float64
	Stop      float64
	Increment float64
}

// Points is the number of sweep samples including both ends.
func (p DCParam) Points() int {
	if p.Increment <= 0 {
		return 0
	}
	return int((p.Stop-p.Start)/p.Increment+0.5) + 1
}

type TranParam struct {
	TStep  float64 // timestep
	TStop  float64 // stop time
	TStart float64 // start of the reported window
	TMax   float64 // max timestep
	UIC    bool    // Use Initial Conditions
}

// Steps is the number of fixed steps of TStep that reach TStop.
func (p TranParam) Steps() int {
	if p.TStep <= 0 {
		return 0
	}
	return int(p.TStop/p.TStep + 0.5)
}

type Element struct {
	Type   string            // Part type (M, C, V)
	Name   string            // Part name
	Nodes  []string          // Node names
	Value  float64           // Part value
	Model  string            // Model name of a transistor
	Params map[string]string // Parameter values
}

type Model struct {
	Name   string
	Type   string // NMOS or PMOS
	Params map[string]float64
}

var unitMap = map[string]float64{
	"t":   1e12,  // tera
	"g":   1e9,   // giga
	"meg": 1e6,   // mega
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valueRe = regexp.MustCompile(`(?i)^([-+]?\d*\.?\d+(?:e[-+]?\d+)?)(meg|[tgkmunpf])?([a-z]*)$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ParseValue parses a number with an optional SPICE scale factor and unit,
// e.g. "1k" -> 1000, "10pF" -> 1e-11, "2meg" -> 2e6.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	if factor := strings.ToLower(matches[2]); factor != "" {
		num *= unitMap[factor]
	}
	return num, nil
}

// Parse reads a deck. The first line is the title. Lines starting with '*'
// and text after an inline '*' are comments, '+' continues the previous
// line and .end stops parsing.
func Parse(r io.Reader) (*Deck, error) {
	scanner := bufio.NewScanner(r)
	deck := &Deck{
		Models: make(map[string]Model),
		Nodes:  make(map[string]int),
	}

	if scanner.Scan() {
		deck.Title = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))
	}

	var currentLine string
	lineNo, startLine := 1, 1
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := deck.parseLine(currentLine)
		currentLine = ""
		if err != nil {
			return errors.Wrapf(err, "line %d", startLine)
		}
		return nil
	}

	ended := false
	for !ended && scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if idx := strings.Index(line, "*"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "+") {
			if currentLine == "" {
				return nil, errors.Errorf("line %d: continuation without a preceding line", lineNo)
			}
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		if strings.EqualFold(line, ".end") {
			ended = true
			continue
		}
		currentLine, startLine = line, lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading netlist")
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return deck, nil
}

// ParseString is Parse over an in-memory deck.
func ParseString(input string) (*Deck, error) {
	return Parse(strings.NewReader(input))
}

func (d *Deck) parseLine(line string) error {
	line = spaceRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return d.parseDotOperator(line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}

	d.Elements = append(d.Elements, *element)
	for _, node := range element.Nodes {
		if _, exists := d.Nodes[node]; !exists {
			d.Nodes[node] = len(d.Nodes)
		}
	}
	return nil
}

// Parse .op, .dc, .tran, .model
func (d *Deck) parseDotOperator(line string) error {
	var err error

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ".model":
		return d.parseModel(line)

	case ".op":
		d.OP = true

	case ".tran":
		if len(fields) < 3 {
			return fmt.Errorf("insufficient tran parameters, need at least tstep and tstop")
		}
		tran := &TranParam{}
		if tran.TStep, err = ParseValue(fields[1]); err != nil {
			return fmt.Errorf("invalid tstep: %v", err)
		}
		if tran.TStop, err = ParseValue(fields[2]); err != nil {
			return fmt.Errorf("invalid tstop: %v", err)
		}

		positional := 0
		for _, field := range fields[3:] {
			if strings.EqualFold(field, "uic") {
				tran.UIC = true
				continue
			}
			value, err := ParseValue(field)
			if err != nil {
				return fmt.Errorf("invalid tran parameter %s: %v", field, err)
			}
			switch positional {
			case 0:
				tran.TStart = value
			case 1:
				tran.TMax = value
			}
			positional++
		}
		if tran.TMax == 0 {
			tran.TMax = tran.TStep
		}
		if tran.TStep <= 0 || tran.TStop <= 0 || tran.TStart < 0 || tran.TStart >= tran.TStop {
			return fmt.Errorf("tran needs 0 < tstep, 0 <= tstart < tstop")
		}
		d.Tran = tran

	case ".dc":
		if len(fields) < 5 {
			return fmt.Errorf("insufficient DC sweep parameters")
		}
		dc := &DCParam{Source: fields[1]}
		if dc.Start, err = ParseValue(fields[2]); err != nil {
			return fmt.Errorf("invalid start value: %v", err)
		}
		if dc.Stop, err = ParseValue(fields[3]); err != nil {
			return fmt.Errorf("invalid stop value: %v", err)
		}
		if dc.Increment, err = ParseValue(fields[4]); err != nil {
			return fmt.Errorf("invalid increment value: %v", err)
		}
		if dc.Increment <= 0 || dc.Stop <= dc.Start {
			return fmt.Errorf("dc sweep needs start < stop and a positive increment")
		}
		d.DC = dc

	default:
		return fmt.Errorf("unsupported analysis type: %s", fields[0])
	}

	return nil
}

// parseModel reads `.model name nmos|pmos (key=value ...)`. Parentheses are
// optional and may touch the type or the parameters.
func (d *Deck) parseModel(line string) error {
	line = strings.NewReplacer("(", " ", ")", " ").Replace(line)
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("insufficient model parameters")
	}

	model := Model{
		Name:   fields[1],
		Type:   strings.ToUpper(fields[2]),
		Params: make(map[string]float64),
	}
	if model.Type != "NMOS" && model.Type != "PMOS" {
		return fmt.Errorf("unsupported model type: %s", fields[2])
	}

	for _, pair := range fields[3:] {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid model parameter %q", pair)
		}
		value, err := ParseValue(parts[1])
		if err != nil {
			return fmt.Errorf("invalid parameter value %s: %v", pair, err)
		}
		model.Params[strings.ToLower(parts[0])] = value
	}

	d.Models[strings.ToLower(model.Name)] = model
	return nil
}

// Parse circuit element
func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid element format: %s", line)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Params: make(map[string]string),
	}

	switch elem.Type {
	case "V":
		return parseVoltageSource(fields)

	case "M":
		// Mname d g s [b] model [w=.. l=..]
		var rest []string
		for _, f := range fields[1:] {
			if k, v, ok := strings.Cut(f, "="); ok {
				elem.Params[strings.ToLower(k)] = v
				continue
			}
			rest = append(rest, f)
		}
		if len(rest) != 4 && len(rest) != 5 {
			return nil, fmt.Errorf("mosfet %s needs drain, gate, source, optional bulk and a model", elem.Name)
		}
		elem.Nodes = rest[:len(rest)-1]
		elem.Model = strings.ToLower(rest[len(rest)-1])
		return elem, nil

	case "C":
		if len(fields) != 4 {
			return nil, fmt.Errorf("capacitor %s needs two nodes and a value", elem.Name)
		}
		elem.Nodes = fields[1:3]
		value, err := ParseValue(fields[3])
		if err != nil {
			return nil, err
		}
		elem.Value = value
		return elem, nil

	default:
		return nil, fmt.Errorf("unsupported element %s", elem.Name)
	}
}

func parseVoltageSource(fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("insufficient voltage source parameters")
	}

	elem := &Element{
		Name:   fields[0],
		Type:   "V",
		Nodes:  []string{fields[1], fields[2]},
		Params: make(map[string]string),
	}

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ") // Append whitespace around parentheses
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)

	kind := strings.ToLower(words[0])
	switch kind {
	case "dc":
		if len(words) < 2 {
			return nil, fmt.Errorf("missing DC value")
		}
		value, err := ParseValue(words[1])
		if err != nil {
			return nil, err
		}
		elem.Value = value

	case "sin", "pulse", "pwl":
		elem.Params[kind] = strings.Trim(strings.Join(words[1:], " "), "() ")

	default:
		// Bare value: V1 a 0 5
		value, err := ParseValue(words[0])
		if err != nil {
			return nil, fmt.Errorf("unsupported voltage source type: %s", words[0])
		}
		kind = "dc"
		elem.Value = value
	}
	elem.Params["type"] = kind

	return elem, nil
}
