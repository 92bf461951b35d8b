/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperledger-labs/globalconf/common/certhash"
	"github.com/hyperledger-labs/globalconf/common/confdir"
	"github.com/hyperledger-labs/globalconf/common/monitoring"
	"github.com/hyperledger-labs/globalconf/config"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger-labs/globalconf/generator"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger-labs/globalconf/ledger"
	"github.com/hyperledger-labs/globalconf/registry"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/hyperledger/fabric-lib-go/common/metrics"
	"github.com/hyperledger/fabric-lib-go/common/metrics/disabled"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = flogging.MustGetLogger("globalconf")

// node holds the components a generation needs. Closing it releases the stores.
type node struct {
	registry  *registry.Registry
	ledger    *ledger.GenerationLedger
	directory *confdir.Directory
	generator *generator.Generator
}

func newNode(conf *config.LocalConfig, provider metrics.Provider) (*node, error) {
	if conf.Registry.Path == "" {
		return nil, errors.New("Registry.Path is not set")
	}
	directory, err := openDirectory(conf, provider)
	if err != nil {
		return nil, err
	}
	hasher, err := certhash.New(conf.Generation.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	n := &node{directory: directory}
	if n.registry, err = registry.Open(conf.Registry.Path, flogging.MustGetLogger("globalconf.registry")); err != nil {
		return nil, err
	}
	assembler, err := core.NewAssembler(n.registry.Sources(), hasher, flogging.MustGetLogger("globalconf.assembler"),
		core.NewMetrics(provider), conf.Generation.Parallel)
	if err != nil {
		n.Close()
		return nil, err
	}
	if conf.Ledger.Path != "" {
		if n.ledger, err = ledger.Open(conf.Ledger.Path, flogging.MustGetLogger("globalconf.ledger")); err != nil {
			n.Close()
			return nil, err
		}
	}
	n.generator = generator.New(assembler, directory, n.ledger, conf.Generation.Validity, flogging.MustGetLogger("globalconf.generator"))
	return n, nil
}

func (n *node) Close() {
	if n.ledger != nil {
		n.ledger.Close()
	}
	if n.registry != nil {
		n.registry.Close()
	}
}

func openDirectory(conf *config.LocalConfig, provider metrics.Provider) (*confdir.Directory, error) {
	opts := []confdir.Option{
		confdir.WithSchemaVersion(conf.Directory.SchemaVersion),
		confdir.WithLogger(flogging.MustGetLogger("globalconf.confdir")),
		confdir.WithMetricsProvider(provider),
	}
	if conf.Directory.Cache {
		opts = append(opts, confdir.WithCache())
	}
	return confdir.New(conf.Directory.Root, opts...)
}

func (cli *CLI) generate(conf *config.LocalConfig) error {
	n, err := newNode(conf, &disabled.Provider{})
	if err != nil {
		return err
	}
	defer n.Close()

	g, err := n.generator.Generate(cli.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Published generation %d of instance %s: %s\n", g.Sequence, g.Instance, g.ContentHash)
	return nil
}

func (cli *CLI) serve(ctx context.Context, conf *config.LocalConfig) error {
	monitor := monitoring.NewMonitor(monitoring.Endpoint{
		Host: conf.Monitoring.ListenAddress,
		Port: conf.Monitoring.ListenPort,
	}, flogging.MustGetLogger("globalconf.monitoring"))

	n, err := newNode(conf, monitor.Provider)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()
	fmt.Fprintf(cli.out, "Serving metrics on %s\n", monitor.Address())

	logger.Infof("Generating shared parameters every %v into %s", conf.Generation.Interval, conf.Directory.Root)
	n.generator.Run(ctx, conf.Generation.Interval)
	return nil
}

// documentSummary is what show prints for a stored document.
type documentSummary struct {
	Instance string            `yaml:"instance"`
	Kind     globalconf.Kind   `yaml:"kind"`
	Metadata *confdir.Metadata `yaml:"metadata,omitempty"`
	Expired  bool              `yaml:"expired"`
	Shared   *sharedSummary    `yaml:"shared,omitempty"`
	Private  *privateSummary   `yaml:"private,omitempty"`
}

type sharedSummary struct {
	Sources              int      `yaml:"sources"`
	ApprovedCAs          []string `yaml:"approvedCAs,omitempty"`
	ApprovedTSAs         []string `yaml:"approvedTSAs,omitempty"`
	Members              []string `yaml:"members,omitempty"`
	SecurityServers      []string `yaml:"securityServers,omitempty"`
	GlobalGroups         []string `yaml:"globalGroups,omitempty"`
	CentralServices      []string `yaml:"centralServices,omitempty"`
	OcspFreshnessSeconds int      `yaml:"ocspFreshnessSeconds"`
}

type privateSummary struct {
	Anchors                     []string `yaml:"anchors,omitempty"`
	ManagementServiceProvider   string   `yaml:"managementServiceProvider"`
	TimeStampingIntervalSeconds int      `yaml:"timeStampingIntervalSeconds"`
}

func (cli *CLI) show(conf *config.LocalConfig, instance, kind string) error {
	directory, err := openDirectory(conf, &disabled.Provider{})
	if err != nil {
		return err
	}
	if instance == "" {
		if instance, err = directory.InstanceIdentifier(); err != nil {
			return err
		}
		if instance == "" {
			return errors.New("no instance given and the directory has no home instance")
		}
	}

	summary := documentSummary{Instance: instance, Kind: globalconf.Kind(kind)}
	switch summary.Kind {
	case globalconf.KindShared:
		p, err := directory.GetShared(instance)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.Errorf("instance %s has no shared parameters", instance)
		}
		summary.Shared = summarizeShared(p)
	case globalconf.KindPrivate:
		p, err := directory.GetPrivate(instance)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.Errorf("instance %s has no private parameters", instance)
		}
		summary.Private = summarizePrivate(p)
	}

	if summary.Metadata, err = directory.Metadata(instance, summary.Kind); err != nil {
		return err
	}
	if summary.Metadata != nil && !summary.Metadata.ExpirationDate.IsZero() {
		summary.Expired, err = directory.IsExpired(instance, summary.Kind, time.Now())
		if err != nil {
			return err
		}
	}
	return cli.printYAML(summary)
}

func summarizeShared(p *globalconf.SharedParameters) *sharedSummary {
	s := &sharedSummary{Sources: len(p.Sources), OcspFreshnessSeconds: p.GlobalSettings.OcspFreshnessSeconds}
	for _, ca := range p.ApprovedCAs {
		s.ApprovedCAs = append(s.ApprovedCAs, ca.Name)
	}
	for _, tsa := range p.ApprovedTSAs {
		s.ApprovedTSAs = append(s.ApprovedTSAs, tsa.Name)
	}
	for _, m := range p.Members {
		s.Members = append(s.Members, fmt.Sprintf("%s (%s, %d subsystems)", m.ID, m.Name, len(m.Subsystems)))
	}
	for _, server := range p.SecurityServers {
		s.SecurityServers = append(s.SecurityServers, fmt.Sprintf("%s/%s", server.Owner, server.ServerCode))
	}
	for _, g := range p.GlobalGroups {
		s.GlobalGroups = append(s.GlobalGroups, fmt.Sprintf("%s (%d members)", g.GroupCode, len(g.GroupMembers)))
	}
	for _, cs := range p.CentralServices {
		s.CentralServices = append(s.CentralServices, fmt.Sprintf("%s -> %s", cs.ServiceCode, cs.Implementing))
	}
	return s
}

func summarizePrivate(p *globalconf.PrivateParameters) *privateSummary {
	s := &privateSummary{
		ManagementServiceProvider:   p.ManagementService.ManagementRequestServiceProviderID.String(),
		TimeStampingIntervalSeconds: p.TimeStampingIntervalSeconds,
	}
	for _, a := range p.ConfigurationAnchors {
		s.Anchors = append(s.Anchors, fmt.Sprintf("%s (%d sources)", a.InstanceIdentifier, len(a.Sources)))
	}
	return s
}

func (cli *CLI) files(conf *config.LocalConfig) error {
	directory, err := openDirectory(conf, &disabled.Provider{})
	if err != nil {
		return err
	}
	files, err := directory.GetConfigurationFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cli.out, f)
	}
	return nil
}

func (cli *CLI) verify(conf *config.LocalConfig) error {
	directory, err := openDirectory(conf, &disabled.Provider{})
	if err != nil {
		return err
	}
	if err := directory.Verify(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "All documents in %s conform to schema version %d\n", directory.Root(), directory.SchemaVersion())
	return nil
}

func (cli *CLI) seed(conf *config.LocalConfig, fixturePath string) error {
	if conf.Registry.Path == "" {
		return errors.New("Registry.Path is not set")
	}
	fixture, err := registry.LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	r, err := registry.Open(conf.Registry.Path, flogging.MustGetLogger("globalconf.registry"))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Seed(cli.ctx, fixture); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Seeded %s from %s\n", conf.Registry.Path, fixturePath)
	return nil
}

func (cli *CLI) history(conf *config.LocalConfig, from uint64, limit int) error {
	if conf.Ledger.Path == "" {
		return errors.New("Ledger.Path is not set")
	}
	l, err := ledger.Open(conf.Ledger.Path, flogging.MustGetLogger("globalconf.ledger"))
	if err != nil {
		return err
	}
	defer l.Close()

	generations, err := l.List(from, limit)
	if err != nil {
		return err
	}
	return cli.printYAML(generations)
}

func (cli *CLI) printYAML(v interface{}) error {
	encoder := yaml.NewEncoder(cli.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return errors.Wrap(err, "failed to print")
	}
	return encoder.Close()
}
