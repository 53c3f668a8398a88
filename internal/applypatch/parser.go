/* Copyright © 2025 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this package for license terms
 */

// Package applypatch implements the "*** Begin Patch" grammar: parsing
// patch text into per-file actions, computing updated file contents
// with fuzzy context matching, and applying the resulting commit to the
// filesystem.
package applypatch

import (
	"errors"
	"fmt"
	"strings"
)

type ActionType string

const (
	ActionAdd    ActionType = "add"
	ActionDelete ActionType = "delete"
	ActionUpdate ActionType = "update"
)

const (
	sentinelToken      = "***"
	SentinelBeginPatch = sentinelToken + " Begin Patch"
	SentinelEndPatch   = sentinelToken + " End Patch"
	sentinelUpdateFile = sentinelToken + " Update File"
	sentinelMoveTo     = sentinelToken + " Move to"
	sentinelDeleteFile = sentinelToken + " Delete File"
	sentinelAddFile    = sentinelToken + " Add File"
	sentinelEndOfFile  = sentinelToken + " End of File"

	// with colon and whitespace
	sentinelUpdateFilePrefix = sentinelUpdateFile + ": "
	sentinelMoveToPrefix     = sentinelMoveTo + ": "
	sentinelDeleteFilePrefix = sentinelDeleteFile + ": "
	sentinelAddFilePrefix    = sentinelAddFile + ": "

	// with colon only
	sentinelUpdateFileColon = sentinelUpdateFile + ":"
	sentinelDeleteFileColon = sentinelDeleteFile + ":"
	sentinelAddFileColon    = sentinelAddFile + ":"
)

// Chunk is one contiguous replacement within an update action,
// positioned by original-file line index.
type Chunk struct {
	OrigIndex int
	DelLines  []string
	InsLines  []string
}

// Action describes what the patch does to one file.
type Action struct {
	Type     ActionType
	NewFile  string
	Chunks   []Chunk
	MovePath string
}

// Patch is the parsed form of one patch document.
type Patch struct {
	Actions map[string]Action
}

// FileChange is the resolved outcome for one file after applying its
// action to the current content.
type FileChange struct {
	Type       ActionType
	OldContent string
	NewContent string
	MovePath   string
}

// Commit is the set of resolved file changes ready to write out.
type Commit struct {
	Changes map[string]FileChange
}

type parser struct {
	currentFiles map[string]string
	lines        []string
	index        int
	patch        Patch
	fuzz         int
}

func norm(line string) string {
	return strings.TrimRight(line, "\r")
}

// ParseText parses patch text against the current content of the files
// it touches. It returns the parsed patch and the accumulated fuzz
// (how loosely hunk contexts had to be matched).
func ParseText(text string, currentFiles map[string]string) (Patch, int, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 ||
		!strings.HasPrefix(norm(lines[0]), SentinelBeginPatch) ||
		norm(lines[len(lines)-1]) != SentinelEndPatch {
		return Patch{}, 0, fmt.Errorf("invalid patch text: missing %v/%v sentinels",
			SentinelBeginPatch, SentinelEndPatch)
	}

	p := &parser{
		currentFiles: currentFiles,
		lines:        lines,
		index:        1,
		patch:        Patch{Actions: make(map[string]Action)},
	}
	if err := p.parse(); err != nil {
		return Patch{}, 0, err
	}
	return p.patch, p.fuzz, nil
}

func (p *parser) curLine() (string, error) {
	if p.index >= len(p.lines) {
		return "", errors.New("unexpected end of input while parsing patch")
	}
	return p.lines[p.index], nil
}

func (p *parser) isDone(prefixes ...string) bool {
	if p.index >= len(p.lines) {
		return true
	}
	nl := norm(p.lines[p.index])
	for _, pre := range prefixes {
		if strings.HasPrefix(nl, pre) {
			return true
		}
	}
	return false
}

func (p *parser) startsWith(prefix string) bool {
	if p.index >= len(p.lines) {
		return false
	}
	return strings.HasPrefix(norm(p.lines[p.index]), prefix)
}

// readStr consumes and returns the remainder of the current line when
// it begins with prefix, otherwise leaves the position untouched.
func (p *parser) readStr(prefix string) string {
	if p.index >= len(p.lines) {
		return ""
	}
	line := p.lines[p.index]
	if strings.HasPrefix(norm(line), prefix) {
		p.index++
		return line[len(prefix):]
	}
	return ""
}

func (p *parser) readLine() (string, error) {
	if p.index >= len(p.lines) {
		return "", errors.New("unexpected end of input while reading line")
	}
	line := p.lines[p.index]
	p.index++
	return line, nil
}

func (p *parser) parse() error {
	for !p.isDone(SentinelEndPatch) {
		if path := p.readStr(sentinelUpdateFilePrefix); path != "" {
			if _, ok := p.patch.Actions[path]; ok {
				return fmt.Errorf("duplicate update for file: %s", path)
			}
			moveTo := p.readStr(sentinelMoveToPrefix)
			text, ok := p.currentFiles[path]
			if !ok {
				return fmt.Errorf("update references missing file: %s", path)
			}
			action, err := p.parseUpdateFile(text)
			if err != nil {
				return err
			}
			if moveTo != "" {
				action.MovePath = moveTo
			}
			p.patch.Actions[path] = action
			continue
		}
		if path := p.readStr(sentinelDeleteFilePrefix); path != "" {
			if _, ok := p.patch.Actions[path]; ok {
				return fmt.Errorf("duplicate delete for file: %s", path)
			}
			if _, ok := p.currentFiles[path]; !ok {
				return fmt.Errorf("delete references missing file: %s", path)
			}
			p.patch.Actions[path] = Action{Type: ActionDelete}
			continue
		}
		if path := p.readStr(sentinelAddFilePrefix); path != "" {
			if _, ok := p.patch.Actions[path]; ok {
				return fmt.Errorf("duplicate add for file: %s", path)
			}
			if _, ok := p.currentFiles[path]; ok {
				return fmt.Errorf("add for file that already exists: %s", path)
			}
			action, err := p.parseAddFile()
			if err != nil {
				return err
			}
			p.patch.Actions[path] = action
			continue
		}
		line, _ := p.curLine()
		return fmt.Errorf("unknown line while parsing: %s", line)
	}
	if !p.startsWith(SentinelEndPatch) {
		return fmt.Errorf("missing %v sentinel", SentinelEndPatch)
	}
	p.index++
	return nil
}

func (p *parser) parseAddFile() (Action, error) {
	var lines []string
	for !p.isDone(SentinelEndPatch, sentinelUpdateFileColon,
		sentinelDeleteFileColon, sentinelAddFileColon) {
		s, err := p.readLine()
		if err != nil {
			return Action{}, err
		}
		if !strings.HasPrefix(s, "+") {
			return Action{}, fmt.Errorf("invalid add file line (missing '+'): %s", s)
		}
		lines = append(lines, s[1:])
	}
	return Action{Type: ActionAdd, NewFile: strings.Join(lines, "\n")}, nil
}

func (p *parser) parseUpdateFile(text string) (Action, error) {
	action := Action{Type: ActionUpdate}
	origLines := strings.Split(text, "\n")
	idx := 0

	for !p.isDone(SentinelEndPatch, sentinelUpdateFileColon,
		sentinelDeleteFileColon, sentinelAddFileColon, sentinelEndOfFile) {
		defStr := p.readStr("@@ ")
		if defStr == "" && norm(p.lines[p.index]) == "@@" {
			// some diffs use a bare "@@"
			p.index++
		}
		nextCtx, chunks, endIdx, eof, err := peekNextSection(p.lines, p.index)
		if err != nil {
			return action, err
		}
		newIdx, fuzz := findContext(origLines, nextCtx, idx, eof)
		if newIdx < 0 {
			return action, fmt.Errorf("invalid context at %d: %v", idx, nextCtx)
		}
		p.fuzz += fuzz
		for _, ch := range chunks {
			ch.OrigIndex += newIdx
			action.Chunks = append(action.Chunks, ch)
		}
		idx = newIdx + len(nextCtx)
		p.index = endIdx
	}
	return action, nil
}

func findContextCore(lines, ctx []string, start int) (int, int) {
	if len(ctx) == 0 {
		return start, 0
	}
	// exact
	for i := start; i+len(ctx) <= len(lines); i++ {
		ok := true
		for j := 0; j < len(ctx); j++ {
			if lines[i+j] != ctx[j] {
				ok = false
				break
			}
		}
		if ok {
			return i, 0
		}
	}
	// ignoring trailing \r
	for i := start; i+len(ctx) <= len(lines); i++ {
		ok := true
		for j := 0; j < len(ctx); j++ {
			if norm(lines[i+j]) != norm(ctx[j]) {
				ok = false
				break
			}
		}
		if ok {
			return i, 1
		}
	}
	// ignoring surrounding whitespace
	for i := start; i+len(ctx) <= len(lines); i++ {
		ok := true
		for j := 0; j < len(ctx); j++ {
			if strings.TrimSpace(lines[i+j]) != strings.TrimSpace(ctx[j]) {
				ok = false
				break
			}
		}
		if ok {
			return i, 100
		}
	}
	return -1, 0
}

func findContext(lines, ctx []string, start int, eof bool) (int, int) {
	if eof {
		idx, fuzz := findContextCore(lines, ctx, len(lines)-len(ctx))
		if idx >= 0 {
			return idx, fuzz
		}
		idx, fuzz = findContextCore(lines, ctx, start)
		return idx, fuzz + 10000
	}
	return findContextCore(lines, ctx, start)
}

func peekNextSection(lines []string, idx int) (ctx []string,
	chunks []Chunk, endIdx int, eof bool, err error) {

	var old, delLines, insLines []string
	origIdx := idx
	mode := "keep"

	for idx < len(lines) {
		s := lines[idx]
		if strings.HasPrefix(s, "@@") ||
			strings.HasPrefix(s, SentinelEndPatch) ||
			strings.HasPrefix(s, sentinelUpdateFileColon) ||
			strings.HasPrefix(s, sentinelDeleteFileColon) ||
			strings.HasPrefix(s, sentinelAddFileColon) ||
			strings.HasPrefix(s, sentinelEndOfFile) {
			break
		}
		if s == sentinelToken {
			break
		}
		if strings.HasPrefix(s, sentinelToken) {
			return nil, nil, 0, false, fmt.Errorf("invalid line: %s", s)
		}
		idx++
		last := mode
		if s == "" {
			s = " "
		}
		switch s[0] {
		case '+':
			mode = "add"
		case '-':
			mode = "delete"
		case ' ':
			mode = "keep"
		default:
			return nil, nil, 0, false, fmt.Errorf("invalid line: %s", s)
		}
		lineText := s[1:]
		if mode == "keep" && last != mode && (len(delLines) > 0 || len(insLines) > 0) {
			chunks = append(chunks, Chunk{
				OrigIndex: len(old) - len(delLines),
				DelLines:  append([]string{}, delLines...),
				InsLines:  append([]string{}, insLines...),
			})
			delLines = nil
			insLines = nil
		}
		switch mode {
		case "delete":
			delLines = append(delLines, lineText)
			old = append(old, lineText)
		case "add":
			insLines = append(insLines, lineText)
		case "keep":
			old = append(old, lineText)
		}
	}
	if len(delLines) > 0 || len(insLines) > 0 {
		chunks = append(chunks, Chunk{
			OrigIndex: len(old) - len(delLines),
			DelLines:  delLines,
			InsLines:  insLines,
		})
	}
	if idx < len(lines) && strings.HasPrefix(lines[idx], sentinelEndOfFile) {
		idx++
		return old, chunks, idx, true, nil
	}
	if idx == origIdx {
		return nil, nil, 0, false, errors.New("nothing in this section")
	}
	return old, chunks, idx, false, nil
}

// updatedFile applies an update action's chunks to the original
// content.
func updatedFile(orig string, action Action, path string) (string, error) {
	if action.Type != ActionUpdate {
		return "", errors.New("updatedFile called with non-update action")
	}
	origLines := strings.Split(orig, "\n")
	var dest []string
	oi := 0
	for _, ch := range action.Chunks {
		if ch.OrigIndex > len(origLines) {
			return "", fmt.Errorf("%s: chunk index %d exceeds file length",
				path, ch.OrigIndex)
		}
		if oi > ch.OrigIndex {
			return "", fmt.Errorf("%s: overlapping chunks at %d > %d",
				path, oi, ch.OrigIndex)
		}
		dest = append(dest, origLines[oi:ch.OrigIndex]...)
		oi = ch.OrigIndex
		dest = append(dest, ch.InsLines...)
		oi += len(ch.DelLines)
	}
	dest = append(dest, origLines[oi:]...)
	return strings.Join(dest, "\n"), nil
}

// ToCommit resolves the patch's actions against the original file
// contents into concrete file changes.
func (patch Patch) ToCommit(orig map[string]string) (Commit, error) {
	commit := Commit{Changes: make(map[string]FileChange)}
	for path, action := range patch.Actions {
		switch action.Type {
		case ActionDelete:
			commit.Changes[path] = FileChange{
				Type:       ActionDelete,
				OldContent: orig[path],
			}
		case ActionAdd:
			if action.NewFile == "" {
				return commit, errors.New("add action without file content")
			}
			commit.Changes[path] = FileChange{
				Type:       ActionAdd,
				NewContent: action.NewFile,
			}
		case ActionUpdate:
			newContent, err := updatedFile(orig[path], action, path)
			if err != nil {
				return commit, err
			}
			commit.Changes[path] = FileChange{
				Type:       ActionUpdate,
				OldContent: orig[path],
				NewContent: newContent,
				MovePath:   action.MovePath,
			}
		}
	}
	return commit, nil
}
