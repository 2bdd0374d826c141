package source

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Fingerprint 返回原始字节的 CIDv1（raw codec + sha2-256 multihash）。
func Fingerprint(b []byte) string {
	sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		// SHA2_256 + 默认长度不会出错。
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// dirFingerprint 对 "相对路径\t文件CID" 行清单取 CID；文件增删改名都会改变结果。
func dirFingerprint(rels, cids []string) string {
	var sb strings.Builder
	for i := range rels {
		fmt.Fprintf(&sb, "%s\t%s\n", rels[i], cids[i])
	}
	return Fingerprint([]byte(sb.String()))
}
