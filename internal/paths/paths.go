// Package paths holds the distribution-specific filesystem and binary
// locations used by the service and host-task layers.
package paths

import (
	"fmt"
	"path/filepath"
	"reflect"
)

// Paths is the path registry. Zero-valued fields are filled with openSUSE
// defaults by ApplyDefaults, so a YAML document only needs to list the
// locations that differ.
type Paths struct {
	Systemctl           string `yaml:"systemctl"`
	SystemdDetectVirt   string `yaml:"systemd_detect_virt"`
	EtcSystemdSystemDir string `yaml:"etc_systemd_system_dir"`
	LibSystemdSystemDir string `yaml:"lib_systemd_system_dir"`

	EtcDir  string `yaml:"etc_dir"`
	SbinDir string `yaml:"sbin_dir"`

	HTTPDIPAConf         string `yaml:"httpd_ipa_conf"`
	HTTPDIPAPKIProxyConf string `yaml:"httpd_ipa_pki_proxy_conf"`
	SSHConfigDir         string `yaml:"ssh_config_dir"`
	NamedPKCS11          string `yaml:"named_pkcs11"`

	UpdateCATrust      string `yaml:"update_ca_trust"`
	SystemwideIPACACrt string `yaml:"systemwide_ipa_ca_crt"`
	IPAP11Kit          string `yaml:"ipa_p11_kit"`

	BinHostname           string `yaml:"bin_hostname"`
	EtcHostname           string `yaml:"etc_hostname"`
	SysconfigNetwork      string `yaml:"sysconfig_network"`
	SysconfigNetworkIPABk string `yaml:"sysconfig_network_ipabkp"`

	UserAdd  string `yaml:"useradd"`
	GroupAdd string `yaml:"groupadd"`

	SvcListFile   string `yaml:"svc_list_file"`
	SysrestoreDir string `yaml:"sysrestore_dir"`
}

// OpenSUSE returns the openSUSE path registry.
func OpenSUSE() Paths {
	return Paths{
		Systemctl:           "/usr/bin/systemctl",
		SystemdDetectVirt:   "/usr/bin/systemd-detect-virt",
		EtcSystemdSystemDir: "/etc/systemd/system",
		LibSystemdSystemDir: "/usr/lib/systemd/system",

		EtcDir:  "/etc",
		SbinDir: "/usr/sbin",

		HTTPDIPAConf:         "/etc/apache2/conf.d/ipa.conf",
		HTTPDIPAPKIProxyConf: "/etc/apache2/conf.d/ipa-pki-proxy.conf",
		SSHConfigDir:         "/etc/ssh",
		NamedPKCS11:          "/usr/sbin/named",

		UpdateCATrust:      "/usr/sbin/update-ca-certificates",
		SystemwideIPACACrt: "/etc/pki/trust/anchors/ipa-ca.crt",
		IPAP11Kit:          "/etc/pki/ca-trust/source/ipa.p11-kit",

		BinHostname:           "/bin/hostname",
		EtcHostname:           "/etc/hostname",
		SysconfigNetwork:      "/etc/sysconfig/network",
		SysconfigNetworkIPABk: "/etc/sysconfig/network.ipabkp",

		UserAdd:  "/usr/sbin/useradd",
		GroupAdd: "/usr/sbin/groupadd",

		SvcListFile:   "/run/ipa/services.list",
		SysrestoreDir: "/var/lib/ipa/sysrestore",
	}
}

// ApplyDefaults fills every empty field from OpenSUSE.
func (p *Paths) ApplyDefaults() {
	def := OpenSUSE()
	dst := reflect.ValueOf(p).Elem()
	src := reflect.ValueOf(def)
	for i := 0; i < dst.NumField(); i++ {
		if dst.Field(i).String() == "" {
			dst.Field(i).SetString(src.Field(i).String())
		}
	}
}

// Validate checks that every configured location is absolute.
func (p *Paths) Validate() error {
	v := reflect.ValueOf(*p)
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		s := v.Field(i).String()
		if s != "" && !filepath.IsAbs(s) {
			return fmt.Errorf("paths: config: %s must be absolute, got %q", t.Field(i).Tag.Get("yaml"), s)
		}
	}
	return nil
}

// Rooted returns a copy with every path re-rooted under root. Used to
// point the whole registry at a scratch tree.
func (p Paths) Rooted(root string) Paths {
	v := reflect.ValueOf(&p).Elem()
	for i := 0; i < v.NumField(); i++ {
		if s := v.Field(i).String(); s != "" {
			v.Field(i).SetString(filepath.Join(root, s))
		}
	}
	return p
}
