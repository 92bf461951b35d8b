/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package generator_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/globalconf/common/confdir"
	"github.com/hyperledger-labs/globalconf/common/utils"
	"github.com/hyperledger-labs/globalconf/core"
	"github.com/hyperledger-labs/globalconf/generator"
	"github.com/hyperledger-labs/globalconf/generator/mocks"
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger-labs/globalconf/ledger"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Generator", func() {
	var (
		root      string
		directory *confdir.Directory
		l         *ledger.GenerationLedger
		assembler *mocks.FakeAssembler
		gen       *generator.Generator
		document  *globalconf.SharedParameters
		clock     time.Time
	)

	BeforeEach(func() {
		logger := flogging.MustGetLogger("generator.test")
		root = GinkgoT().TempDir()

		var err error
		directory, err = confdir.New(root, confdir.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		l, err = ledger.Open(filepath.Join(GinkgoT().TempDir(), "ledger"), logger)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(l.Close)

		document = &globalconf.SharedParameters{
			InstanceIdentifier: "EE",
			Sources:            []globalconf.ConfigurationSource{{Address: "cs.example.com"}},
			GlobalSettings:     globalconf.GlobalSettings{OcspFreshnessSeconds: 600},
		}
		assembler = &mocks.FakeAssembler{}
		assembler.AssembleReturns(document, nil)

		clock = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		gen = generator.New(assembler, directory, l, 10*time.Minute, logger)
		gen.SetClock(func() time.Time { return clock })
	})

	Describe("Generate", func() {
		It("publishes the assembled document", func() {
			generation, err := gen.Generate(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(generation.Sequence).To(BeZero())
			Expect(generation.Instance).To(Equal("EE"))
			Expect(generation.FileName).To(Equal(confdir.SharedParamsFile))

			stored, err := directory.GetShared("EE")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(document))

			content, err := os.ReadFile(filepath.Join(root, "EE", confdir.SharedParamsFile))
			Expect(err).NotTo(HaveOccurred())
			Expect(generation.ContentHash).To(Equal(confdir.ContentHash(content)))
			Expect(generation.Size).To(Equal(len(content)))

			md, err := directory.Metadata("EE", globalconf.KindShared)
			Expect(err).NotTo(HaveOccurred())
			Expect(md.GeneratedAt).To(BeTemporally("==", clock))
			Expect(md.ExpirationDate).To(BeTemporally("==", clock.Add(10*time.Minute)))

			instance, err := directory.InstanceIdentifier()
			Expect(err).NotTo(HaveOccurred())
			Expect(instance).To(Equal("EE"))

			last, err := l.Last()
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(Equal(generation))
		})

		It("numbers consecutive generations", func() {
			for i := 0; i < 3; i++ {
				clock = clock.Add(time.Minute)
				generation, err := gen.Generate(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(generation.Sequence).To(Equal(uint64(i)))
			}
			Expect(l.Height()).To(Equal(uint64(3)))

			expired, err := directory.IsExpired("EE", globalconf.KindShared, clock.Add(10*time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(expired).To(BeTrue())
			expired, err = directory.IsExpired("EE", globalconf.KindShared, clock.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(expired).To(BeFalse())
		})

		It("stores nothing when assembly fails", func() {
			assembler.AssembleReturns(nil, errors.Mark(errors.New("database is down"), utils.ErrDataAccess))

			generation, err := gen.Generate(context.Background())
			Expect(errors.Is(err, utils.ErrDataAccess)).To(BeTrue())
			Expect(generation).To(BeNil())

			stored, err := directory.GetShared("EE")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(BeNil())
			Expect(l.Height()).To(BeZero())
		})

		It("refuses to publish a document that does not validate", func() {
			document.Sources = nil

			_, err := gen.Generate(context.Background())
			var formatErr *globalconf.FormatError
			Expect(errors.As(err, &formatErr)).To(BeTrue())

			files, err := directory.GetConfigurationFiles()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(BeEmpty())
			Expect(l.Height()).To(BeZero())
		})

		It("works without a ledger", func() {
			gen = generator.New(assembler, directory, nil, 0, flogging.MustGetLogger("generator.test"))
			generation, err := gen.Generate(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(generation.ExpiresAt.IsZero()).To(BeTrue())

			md, err := directory.Metadata("EE", globalconf.KindShared)
			Expect(err).NotTo(HaveOccurred())
			Expect(md.ExpirationDate.IsZero()).To(BeTrue())
		})
	})

	Describe("Run", func() {
		It("keeps generating after failed cycles until cancelled", func() {
			assembler.AssembleReturnsOnCall(0, nil, core.ErrAssemblyInProgress)
			assembler.AssembleReturnsOnCall(1, nil, errors.Mark(errors.New("database is down"), utils.ErrDataAccess))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				gen.Run(ctx, 10*time.Millisecond)
			}()

			Eventually(l.Height, 10*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 2))
			Expect(assembler.AssembleCallCount()).To(BeNumerically(">=", 4))

			cancel()
			Eventually(done, 10*time.Second).Should(BeClosed())
		})

		It("panics on a non positive interval", func() {
			Expect(func() { gen.Run(context.Background(), 0) }).To(Panic())
		})
	})
})
