package gosfzplayer

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/GeoffreyPlitt/debuggo"
)

var parserDebug = debuggo.Debug("sfizz:parser")

// SfzData is the raw parse of an SFZ file: one optional global section,
// any number of groups, and any number of regions, each still holding
// its opcodes as unresolved key=value strings.
type SfzData struct {
	Global  *SfzSection
	Groups  []*SfzSection
	Regions []*SfzSection
}

// SfzSection is one <global>, <group>, or <region> block. group is set
// on region sections to the <group> block they were declared under, if
// any, so opcode inheritance can be resolved afterward.
type SfzSection struct {
	Type    string
	Opcodes map[string]string
	group   *SfzSection
}

// ParseSfzFile scans an SFZ file into its raw section structure.
// Opcode values are kept as strings; ApplyOpcode (via BuildRegions)
// does the typed interpretation, so an opcode unrecognized by this
// version of the engine is preserved rather than dropped.
func ParseSfzFile(filePath string) (*SfzData, error) {
	parserDebug("parsing SFZ file: %s", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("sfizz: opening SFZ file: %w", err)
	}
	defer file.Close()

	data := &SfzData{
		Groups:  make([]*SfzSection, 0),
		Regions: make([]*SfzSection, 0),
	}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	var currentSection *SfzSection
	var currentGroup *SfzSection

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "<") && strings.Contains(line, ">") {
			end := strings.Index(line, ">")
			sectionType := strings.ToLower(strings.TrimSpace(line[1:end]))
			currentSection = &SfzSection{Type: sectionType, Opcodes: make(map[string]string)}

			switch sectionType {
			case "global":
				data.Global = currentSection
			case "group", "master":
				currentGroup = currentSection
				data.Groups = append(data.Groups, currentSection)
			case "region":
				currentSection.group = currentGroup
				data.Regions = append(data.Regions, currentSection)
			default:
				parserDebug("unsupported section type %q at line %d", sectionType, lineNum)
			}

			line = strings.TrimSpace(line[end+1:])
			if line == "" {
				continue
			}
		}

		if currentSection == nil {
			parserDebug("opcode outside any section at line %d: %s", lineNum, line)
			continue
		}
		parseOpcodes(line, currentSection)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sfizz: reading SFZ file: %w", err)
	}

	parserDebug("parsed %d regions, %d groups", len(data.Regions), len(data.Groups))
	return data, nil
}

func parseOpcodes(line string, section *SfzSection) {
	for _, part := range strings.Fields(line) {
		if strings.HasPrefix(part, "//") {
			break
		}
		eq := strings.Index(part, "=")
		if eq == -1 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:eq]))
		value := strings.TrimSpace(part[eq+1:])
		section.Opcodes[key] = value
	}
}

// BuildRegions resolves every parsed <region> into a typed Region,
// inheriting opcodes from <global> and its enclosing <group> before
// applying its own.
func BuildRegions(data *SfzData) []*Region {
	regions := make([]*Region, 0, len(data.Regions))
	for _, rs := range data.Regions {
		region := NewRegion()
		applySection(region, data.Global)
		applySection(region, rs.group)
		applySection(region, rs)
		regions = append(regions, region)
	}
	return regions
}

func applySection(region *Region, section *SfzSection) {
	if section == nil {
		return
	}
	for key, value := range section.Opcodes {
		region.ApplyOpcode(key, value)
	}
}
