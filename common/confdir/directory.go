/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package confdir

import (
	"crypto/sha256"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperledger-labs/globalconf/common/types"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/hyperledger/fabric-lib-go/common/metrics"
	"github.com/hyperledger/fabric-lib-go/common/metrics/disabled"
	"github.com/pkg/errors"
)

const (
	SharedParamsFile       = "shared-params.xml"
	PrivateParamsFile      = "private-params.xml"
	MetadataSuffix         = ".metadata"
	InstanceIdentifierFile = "instance-identifier"
)

// FileName returns the name of the content file of a document kind.
func FileName(kind globalconf.Kind) string {
	if kind == globalconf.KindPrivate {
		return PrivateParamsFile
	}
	return SharedParamsFile
}

// Directory is a configuration directory: a root holding one subdirectory per federation
// instance, each with an optional shared and an optional private parameters document.
//
// Lookups read and validate the stored file on every call and share no parsed state, so a
// Directory can be used by concurrent callers while an external writer replaces files.
type Directory struct {
	root    string
	version int
	logger  types.Logger
	metrics *Metrics
	cache   *validationCache
}

type Option func(*Directory)

// WithSchemaVersion sets the schema version stored documents must conform to.
func WithSchemaVersion(version int) Option {
	return func(d *Directory) { d.version = version }
}

func WithLogger(logger types.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

func WithMetricsProvider(provider metrics.Provider) Option {
	return func(d *Directory) { d.metrics = NewMetrics(provider) }
}

// WithCache remembers the validation outcome of each document keyed by its content digest,
// so an unchanged file is validated once.
func WithCache() Option {
	return func(d *Directory) { d.cache = newValidationCache() }
}

// New opens the configuration directory at root.
func New(root string, opts ...Option) (*Directory, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open configuration directory %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("configuration directory %s is not a directory", root)
	}

	d := &Directory{root: root, version: globalconf.CurrentVersion}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = flogging.MustGetLogger("globalconf.confdir")
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(&disabled.Provider{})
	}
	if _, err := globalconf.LookupSchema(globalconf.KindShared, d.version); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Directory) Root() string {
	return d.root
}

func (d *Directory) SchemaVersion() int {
	return d.version
}

// GetShared returns the shared parameters of an instance, or nil when the instance has none.
// A stored document that does not validate yields a *globalconf.FormatError.
func (d *Directory) GetShared(instance string) (*globalconf.SharedParameters, error) {
	data, path, err := d.load(instance, globalconf.KindShared)
	if err != nil || data == nil {
		return nil, err
	}
	p, err := globalconf.DecodeShared(data, d.version)
	if err != nil {
		return nil, d.invalid(globalconf.KindShared, path, err)
	}
	d.metrics.lookup(globalconf.KindShared, resultPresent)
	return p, nil
}

// GetPrivate returns the private parameters of an instance, or nil when the instance has none.
// A stored document that does not validate yields a *globalconf.FormatError.
func (d *Directory) GetPrivate(instance string) (*globalconf.PrivateParameters, error) {
	data, path, err := d.load(instance, globalconf.KindPrivate)
	if err != nil || data == nil {
		return nil, err
	}
	p, err := globalconf.DecodePrivate(data, d.version)
	if err != nil {
		return nil, d.invalid(globalconf.KindPrivate, path, err)
	}
	d.metrics.lookup(globalconf.KindPrivate, resultPresent)
	return p, nil
}

// load reads and validates a stored document. It returns nil data when the document is absent.
// The caller records the successful lookup once the document is decoded.
func (d *Directory) load(instance string, kind globalconf.Kind) ([]byte, string, error) {
	path, err := d.documentPath(instance, kind)
	if err != nil {
		d.metrics.lookup(kind, resultError)
		return nil, "", err
	}

	// Only subdirectories are instances; a top level file such as the marker is not.
	info, err := os.Stat(filepath.Dir(path))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return d.absent(instance, kind, path)
	}
	if err != nil {
		d.metrics.lookup(kind, resultError)
		return nil, path, errors.Wrapf(err, "failed to stat instance %s", instance)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d.absent(instance, kind, path)
	}
	if err != nil {
		d.metrics.lookup(kind, resultError)
		return nil, path, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := d.validate(instance, kind, data); err != nil {
		return nil, path, d.invalid(kind, path, err)
	}
	return data, path, nil
}

func (d *Directory) absent(instance string, kind globalconf.Kind, path string) ([]byte, string, error) {
	d.logger.Debugf("No %s parameters for instance %s", kind, instance)
	d.metrics.lookup(kind, resultAbsent)
	return nil, path, nil
}

func (d *Directory) validate(instance string, kind globalconf.Kind, data []byte) error {
	if d.cache == nil {
		return globalconf.Validate(kind, data, d.version)
	}
	key := cacheKey{kind: kind, instance: instance}
	digest := sha256.Sum256(data)
	if err, ok := d.cache.get(key, digest); ok {
		return err
	}
	err := globalconf.Validate(kind, data, d.version)
	d.cache.put(key, digest, err)
	return err
}

// invalid attaches the file path to a format error and records the failed lookup.
func (d *Directory) invalid(kind globalconf.Kind, path string, err error) error {
	var fe *globalconf.FormatError
	if !errors.As(err, &fe) {
		d.metrics.lookup(kind, resultError)
		return err
	}
	d.metrics.lookup(kind, resultInvalid)
	withPath := *fe
	withPath.Path = path
	d.logger.Warnf("%v", &withPath)
	return &withPath
}

// GetConfigurationFiles lists the shared and private parameters files present in every
// instance subdirectory, sorted. Metadata files and the instance identifier marker are
// never included.
func (d *Directory) GetConfigurationFiles() ([]string, error) {
	instances, err := d.Instances()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, instance := range instances {
		for _, name := range []string{PrivateParamsFile, SharedParamsFile} {
			path := filepath.Join(d.root, instance, name)
			info, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "failed to stat %s", path)
			}
			if info.Mode().IsRegular() {
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Instances lists the instance subdirectories, sorted.
func (d *Directory) Instances() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list configuration directory %s", d.root)
	}
	var instances []string
	for _, entry := range entries {
		if entry.IsDir() && checkInstance(entry.Name()) == nil {
			instances = append(instances, entry.Name())
		}
	}
	return instances, nil
}

// InstanceIdentifier returns the home instance recorded in the marker file, or "" when
// there is no marker.
func (d *Directory) InstanceIdentifier() (string, error) {
	data, err := os.ReadFile(filepath.Join(d.root, InstanceIdentifierFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read instance identifier")
	}
	return strings.TrimSpace(string(data)), nil
}

// SetInstanceIdentifier records the home instance in the marker file.
func (d *Directory) SetInstanceIdentifier(instance string) error {
	if err := checkInstance(instance); err != nil {
		return err
	}
	return writeAtomically(filepath.Join(d.root, InstanceIdentifierFile), []byte(instance+"\n"))
}

// Verify validates every stored document and reports all failures together.
func (d *Directory) Verify() error {
	instances, err := d.Instances()
	if err != nil {
		return err
	}
	var failures []string
	for _, instance := range instances {
		if _, err := d.GetShared(instance); err != nil {
			failures = append(failures, err.Error())
		}
		if _, err := d.GetPrivate(instance); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return errors.Errorf("%d invalid configuration documents:\n%s", len(failures), strings.Join(failures, "\n"))
	}
	return nil
}

func (d *Directory) documentPath(instance string, kind globalconf.Kind) (string, error) {
	if err := checkInstance(instance); err != nil {
		return "", err
	}
	return filepath.Join(d.root, instance, FileName(kind)), nil
}

// checkInstance rejects identifiers that cannot name an instance subdirectory. Hidden
// directories are never instances, so lookups and listings agree on the same set.
func checkInstance(instance string) error {
	if instance == "" {
		return errors.New("empty instance identifier")
	}
	if strings.ContainsAny(instance, `/\`) || strings.HasPrefix(instance, ".") {
		return errors.Errorf("invalid instance identifier %q", instance)
	}
	return nil
}
