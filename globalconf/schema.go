/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package globalconf

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Namespace is the XML namespace of the root element of every configuration document.
const Namespace = "urn:globalconf:xsd:conf"

const rootElement = "conf"

// Kind distinguishes the two configuration documents.
type Kind string

const (
	KindShared  Kind = "shared"
	KindPrivate Kind = "private"
)

type valueType int

const (
	complexValue valueType = iota
	stringValue
	integerValue
	booleanValue
	base64Value
	dateTimeValue
)

var valueTypeNames = map[valueType]string{
	integerValue:  "integer",
	booleanValue:  "boolean",
	base64Value:   "base64Binary",
	dateTimeValue: "dateTime",
}

const unbounded = -1

type attribute struct {
	name     string
	required bool
	enum     []string
}

// element is a particle of a sequence content model.
type element struct {
	name     string
	min, max int
	value    valueType
	attrs    []attribute
	children []element
}

// Schema is the content model of one document kind in one major version.
type Schema struct {
	Kind    Kind
	Version int
	root    element
}

type fault string

func (f fault) Error() string { return string(f) }

// node is an element of a parsed document.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     strings.Builder
	children []*node
}

func parseTree(data []byte) (*node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var root *node
	var stack []*node
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fault(err.Error())
		}
		switch t := token.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fault("The markup in the document following the root element must be well-formed.")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fault("Premature end of file.")
	}
	return root, nil
}

// Validate checks a serialized document against the schema.
// The returned error text is the validation fault description.
func (s *Schema) Validate(data []byte) error {
	root, err := parseTree(data)
	if err != nil {
		return err
	}
	return s.validateTree(root)
}

func (s *Schema) validateTree(root *node) error {
	if err := checkRoot(root); err != nil {
		return err
	}
	return validateElement(root, s.root)
}

func checkRoot(root *node) error {
	if root.name.Space != Namespace || root.name.Local != rootElement {
		return fault(fmt.Sprintf("cvc-elt.1.a: Cannot find the declaration of element '%s'.", root.name.Local))
	}
	return nil
}

func validateElement(n *node, e element) error {
	if err := validateAttributes(n, e); err != nil {
		return err
	}

	text := strings.TrimSpace(n.text.String())
	if e.value == complexValue {
		if text != "" {
			return fault(fmt.Sprintf("cvc-complex-type.2.3: Element '%s' cannot have character [children], because the type's content type is element-only.", e.name))
		}
		return matchSequence(n, e.children, true)
	}

	if len(n.children) > 0 {
		return fault(fmt.Sprintf("cvc-type.3.1.2: Element '%s' is a simple type, so it must have no element information item [children].", e.name))
	}
	return validateValue(e, text)
}

func validateAttributes(n *node, e element) error {
	declared := make(map[string]attribute, len(e.attrs))
	for _, a := range e.attrs {
		declared[a.name] = a
	}

	present := make(map[string]string, len(n.attrs))
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Name.Space == "http://www.w3.org/2001/XMLSchema-instance" {
			continue
		}
		if _, ok := declared[a.Name.Local]; !ok {
			return fault(fmt.Sprintf("cvc-complex-type.3.2.2: Attribute '%s' is not allowed to appear in element '%s'.", a.Name.Local, e.name))
		}
		present[a.Name.Local] = a.Value
	}

	for _, a := range e.attrs {
		value, ok := present[a.name]
		if !ok {
			if a.required {
				return fault(fmt.Sprintf("cvc-complex-type.4: Attribute '%s' must appear on element '%s'.", a.name, e.name))
			}
			continue
		}
		if len(a.enum) > 0 && !contains(a.enum, value) {
			return fault(fmt.Sprintf("cvc-enumeration-valid: Value '%s' is not facet-valid with respect to enumeration '[%s]'. It must be a value from the enumeration.",
				value, strings.Join(a.enum, ", ")))
		}
	}
	return nil
}

func validateValue(e element, text string) error {
	var err error
	switch e.value {
	case integerValue:
		_, err = strconv.ParseInt(text, 10, 64)
	case booleanValue:
		if !contains([]string{"true", "false", "1", "0"}, text) {
			err = errors.New("not a boolean")
		}
	case base64Value:
		_, err = base64.StdEncoding.DecodeString(stripSpaces(text))
	case dateTimeValue:
		_, err = time.Parse(time.RFC3339, text)
	}
	if err != nil {
		return fault(fmt.Sprintf("cvc-datatype-valid.1.2.1: '%s' is not a valid value for '%s'.", text, valueTypeNames[e.value]))
	}
	return nil
}

// matchSequence checks the children of n against a sequence of particles. When deep is
// false only names and occurrence counts are checked.
func matchSequence(n *node, particles []element, deep bool) error {
	i, count := 0, 0
	for _, child := range n.children {
		for {
			if i >= len(particles) {
				return fault(fmt.Sprintf("cvc-complex-type.2.4.d: Invalid content was found starting with element '%s'. No child element is expected at this point.", child.name.Local))
			}
			p := particles[i]
			if child.name.Local == p.name && (p.max == unbounded || count < p.max) {
				count++
				if deep {
					if err := validateElement(child, p); err != nil {
						return err
					}
				}
				break
			}
			if count >= p.min {
				i, count = i+1, 0
				continue
			}
			return fault(fmt.Sprintf("cvc-complex-type.2.4.a: Invalid content was found starting with element '%s'. One of '{%s}' is expected.",
				child.name.Local, strings.Join(expectedAt(particles, i, count), ", ")))
		}
	}

	for j := i; j < len(particles); j++ {
		seen := 0
		if j == i {
			seen = count
		}
		if seen < particles[j].min {
			return fault(fmt.Sprintf("cvc-complex-type.2.4.b: The content of element '%s' is not complete. One of '{%s}' is expected.",
				n.name.Local, strings.Join(expectedAt(particles, i, count), ", ")))
		}
	}
	return nil
}

// expectedAt lists the element names allowed at position i of a sequence, given that the
// particle at i has already matched count times.
func expectedAt(particles []element, i, count int) []string {
	var names []string
	for j := i; j < len(particles); j++ {
		p := particles[j]
		seen := 0
		if j == i {
			seen = count
		}
		if p.max == unbounded || seen < p.max {
			names = append(names, p.name)
		}
		if seen < p.min {
			break
		}
	}
	return names
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

var registry = map[Kind]map[int]*Schema{}

func register(s *Schema) {
	if registry[s.Kind] == nil {
		registry[s.Kind] = map[int]*Schema{}
	}
	registry[s.Kind][s.Version] = s
}

// LookupSchema returns the schema of a document kind in the given major version.
func LookupSchema(kind Kind, version int) (*Schema, error) {
	s, ok := registry[kind][version]
	if !ok {
		return nil, errors.Errorf("no schema for %s parameters version %d", kind, version)
	}
	return s, nil
}

// SupportedVersions returns the registered major versions of a document kind, highest first.
func SupportedVersions(kind Kind) []int {
	var versions []int
	for v := range registry[kind] {
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	return versions
}

// DetectVersion inspects the root element and the top level element sequence of a
// document and returns the highest schema version it conforms to, or 0.
func DetectVersion(kind Kind, data []byte) (int, error) {
	root, err := parseTree(data)
	if err != nil {
		return 0, err
	}
	return detectVersion(kind, root)
}

func detectVersion(kind Kind, root *node) (int, error) {
	if err := checkRoot(root); err != nil {
		return 0, err
	}
	for _, v := range SupportedVersions(kind) {
		if matchSequence(root, registry[kind][v].root.children, false) == nil {
			return v, nil
		}
	}
	return 0, nil
}
