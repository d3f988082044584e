package offheap

type Bitmap struct {
	words []uint64
}

func (p *Bitmap) Has(pos int32) bool {
	word, bit := int(pos>>6), uint(pos%64)
	return word < len(p.words) && (p.words[word]&(1<<bit)) != 0
}

func (p *Bitmap) Set(pos int32) {
	word, bit := int(pos>>6), uint(pos%64)
	for word >= len(p.words) {
		p.words = append(p.words, 0)
	}
	p.words[word] |= 1 << bit
}

func (p *Bitmap) UnSet(pos int32) {
	word, bit := int(pos>>6), uint(pos%64)
	for word >= len(p.words) {
		p.words = append(p.words, 0)
	}
	p.words[word] &= ^(uint64(1) << bit)
}

func (p *Bitmap) Count() int {
	var count int
	for _, word := range p.words {
		for ; word != 0; word &= word - 1 {
			count++
		}
	}
	return count
}
