package main

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/sarchlab/llcprefetch/internal/config"
)

var _ = Describe("loadConfig", func() {
	It("returns the validated defaults when nothing overrides them", func() {
		cfg, err := loadConfig(viper.New(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
	})

	It("lets a value set directly on viper override the default", func() {
		v := viper.New()
		v.Set("geometry.log2_block_size", 8)

		cfg, err := loadConfig(v, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Geometry.Log2BlockSize).To(Equal(uint(8)))
	})

	It("reads values from a YAML config file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "cfg.yaml")
		Expect(os.WriteFile(path, []byte("geometry:\n  log2_block_size: 10\n"), 0o644)).To(Succeed())

		cfg, err := loadConfig(viper.New(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Geometry.Log2BlockSize).To(Equal(uint(10)))
	})

	It("propagates a validation failure from the merged config", func() {
		v := viper.New()
		v.Set("geometry.log2_block_size", 0)

		_, err := loadConfig(v, "")
		Expect(err).To(HaveOccurred())
	})

	It("errors on a missing config file", func() {
		_, err := loadConfig(viper.New(), "/nonexistent/path/cfg.yaml")
		Expect(err).To(HaveOccurred())
	})
})
