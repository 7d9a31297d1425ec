package account

import (
	"math/rand/v2"
)

// NameGenerator は新規ユーザーの既定アカウント名を生成する。
type NameGenerator interface {
	Next() string
}

var (
	adjectives = []string{
		"amber", "brave", "calm", "clever", "crimson", "eager", "gentle", "golden",
		"happy", "humble", "jolly", "kind", "lively", "lucky", "mellow", "nimble",
		"quiet", "rapid", "silver", "steady", "sunny", "swift", "tidy", "vivid",
	}
	nouns = []string{
		"badger", "canyon", "cedar", "comet", "falcon", "fjord", "harbor", "heron",
		"island", "lagoon", "maple", "meadow", "orchid", "otter", "pine", "prairie",
		"raven", "river", "summit", "thicket", "tundra", "valley", "willow", "zephyr",
	}
)

// RandomNameGenerator は「形容詞 名詞」形式のアカウント名をランダムに生成する。
type RandomNameGenerator struct{}

// NewRandomNameGenerator はRandomNameGeneratorを生成する。
func NewRandomNameGenerator() *RandomNameGenerator {
	return &RandomNameGenerator{}
}

// Next は新しいアカウント名を返す。空文字を返すことはない。
func (g *RandomNameGenerator) Next() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + nouns[rand.IntN(len(nouns))]
}

// compile-time interface check
var _ NameGenerator = (*RandomNameGenerator)(nil)
