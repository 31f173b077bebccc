package frost

import (
	"encoding/binary"
)

// Wire encodings are fixed-width concatenations of canonical scalar and
// element encodings. Variable-length lists carry a big-endian uint16 count.
// Self-describing values (key shares, public key packages, signing
// packages) lead with a one-byte ciphersuite code.

var suiteCodes = map[string]byte{
	CiphersuiteEd25519:    1,
	CiphersuiteSecp256k1:  2,
	CiphersuiteBabyJubjub: 3,
}

func suiteCode(id string) (byte, error) {
	code, ok := suiteCodes[id]
	if !ok {
		return 0, ErrEncoding.WithDetails("unknown ciphersuite %q", id)
	}
	return code, nil
}

func suiteFromCode(code byte) (Ciphersuite, error) {
	for id, c := range suiteCodes {
		if c == code {
			return CiphersuiteByID(id)
		}
	}
	return nil, decodingError("unknown ciphersuite code %d", code)
}

// decodeElement decodes a group element received from a peer. The identity
// and points outside the prime-order subgroup are rejected.
func decodeElement(curve Curve, data []byte) (Point, error) {
	p, err := curve.PointFromBytes(data)
	if err != nil {
		return nil, asDecodingError(err)
	}
	if p.IsIdentity() {
		return nil, decodingError("element is the identity")
	}
	if !p.IsValid() {
		return nil, decodingError("element is not in the prime-order subgroup")
	}
	return p, nil
}

func decodeScalar(curve Curve, data []byte) (Scalar, error) {
	s, err := curve.ScalarFromBytes(data)
	if err != nil {
		return nil, asDecodingError(err)
	}
	return s, nil
}

func asDecodingError(err error) error {
	if IsErrorCategory(err, ErrorCategoryEncoding) {
		return err
	}
	return ErrDecoding.WithCause(err)
}

// decoder walks a byte slice; the first failure sticks.
type decoder struct {
	curve Curve
	data  []byte
	err   error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data) < n {
		d.err = decodingError("truncated input: need %d bytes, have %d", n, len(d.data))
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *decoder) u16() int {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint16(b))
}

func (d *decoder) u32() int {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint32(b))
}

func (d *decoder) identifier() Identifier {
	b := d.take(d.curve.ScalarSize())
	if b == nil {
		return Identifier{}
	}
	id, err := IdentifierFromBytes(d.curve, b)
	if err != nil {
		d.err = asDecodingError(err)
	}
	return id
}

func (d *decoder) scalar() Scalar {
	b := d.take(d.curve.ScalarSize())
	if b == nil {
		return nil
	}
	s, err := decodeScalar(d.curve, b)
	if err != nil {
		d.err = err
	}
	return s
}

func (d *decoder) element() Point {
	b := d.take(d.curve.PointSize())
	if b == nil {
		return nil
	}
	p, err := decodeElement(d.curve, b)
	if err != nil {
		d.err = err
	}
	return p
}

func (d *decoder) commitment() *VSSCommitment {
	n := d.u16()
	if d.err != nil {
		return nil
	}
	if n == 0 {
		d.err = decodingError("commitment has no coefficients")
		return nil
	}
	points := make([]Point, n)
	for i := range points {
		points[i] = d.element()
	}
	if d.err != nil {
		return nil
	}
	return &VSSCommitment{curve: d.curve, points: points}
}

func (d *decoder) finish() error {
	if d.err == nil && len(d.data) != 0 {
		d.err = decodingError("%d trailing bytes", len(d.data))
	}
	return d.err
}

func putU16(buf []byte, n int) ([]byte, error) {
	if n < 0 || n > 0xffff {
		return nil, ErrEncoding.WithDetails("count %d does not fit in 16 bits", n)
	}
	return binary.BigEndian.AppendUint16(buf, uint16(n)), nil
}

// DecodeIdentifier decodes a canonical identifier encoding.
func DecodeIdentifier(curve Curve, data []byte) (Identifier, error) {
	d := &decoder{curve: curve, data: data}
	id := d.identifier()
	return id, d.finish()
}

// Bytes encodes the commitment as count || C_0 || .. || C_{t-1}.
func (c *VSSCommitment) Bytes() ([]byte, error) {
	out, err := putU16(nil, len(c.points))
	if err != nil {
		return nil, err
	}
	for _, p := range c.points {
		out = append(out, p.Bytes()...)
	}
	return out, nil
}

// DecodeVSSCommitment decodes a commitment, rejecting identity coefficients.
func DecodeVSSCommitment(curve Curve, data []byte) (*VSSCommitment, error) {
	d := &decoder{curve: curve, data: data}
	c := d.commitment()
	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Bytes encodes sender || R || z || commitment.
func (p *Round1Package) Bytes() ([]byte, error) {
	commitment, err := p.Commitment.Bytes()
	if err != nil {
		return nil, err
	}
	return appendAll(p.Sender[:], p.Proof.R.Bytes(), p.Proof.Z.Bytes(), commitment), nil
}

// DecodeRound1Package decodes a broadcast DKG round-1 package.
func DecodeRound1Package(cs Ciphersuite, data []byte) (*Round1Package, error) {
	d := &decoder{curve: cs.Curve(), data: data}
	pkg := &Round1Package{Sender: d.identifier()}
	pkg.Proof = &ProofOfKnowledge{R: d.element(), Z: d.scalar()}
	pkg.Commitment = d.commitment()
	if err := d.finish(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// Bytes encodes sender || recipient || value.
func (s *SecretShare) Bytes() []byte {
	return appendAll(s.Sender[:], s.Recipient[:], s.Value.Bytes())
}

// DecodeSecretShare decodes a DKG round-2 share.
func DecodeSecretShare(cs Ciphersuite, data []byte) (*SecretShare, error) {
	d := &decoder{curve: cs.Curve(), data: data}
	s := &SecretShare{Sender: d.identifier(), Recipient: d.identifier(), Value: d.scalar()}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// Bytes encodes suite || id || sk || min_signers || n || ids || group
// commitment. PublicKey and GroupPublicKey are derived on decode.
func (ks *KeyShare) Bytes() ([]byte, error) {
	code, err := suiteCode(ks.Ciphersuite)
	if err != nil {
		return nil, err
	}
	out := appendAll([]byte{code}, ks.Identifier[:], ks.SecretShare.Bytes())
	if out, err = putU16(out, ks.MinSigners); err != nil {
		return nil, err
	}
	if out, err = putU16(out, len(ks.Participants)); err != nil {
		return nil, err
	}
	for _, id := range ks.Participants {
		out = append(out, id[:]...)
	}
	commitment, err := ks.GroupCommitment.Bytes()
	if err != nil {
		return nil, err
	}
	return append(out, commitment...), nil
}

// DecodeKeyShare decodes a key share and checks that its holder is one of
// the participants and that the secret share lies on the group commitment.
func DecodeKeyShare(data []byte) (*KeyShare, error) {
	if len(data) == 0 {
		return nil, decodingError("empty key share")
	}
	cs, err := suiteFromCode(data[0])
	if err != nil {
		return nil, err
	}
	curve := cs.Curve()
	d := &decoder{curve: curve, data: data[1:]}

	ks := &KeyShare{Ciphersuite: cs.ID(), Identifier: d.identifier(), SecretShare: d.scalar()}
	ks.MinSigners = d.u16()
	n := d.u16()
	if d.err == nil {
		ks.Participants = make([]Identifier, n)
		for i := range ks.Participants {
			ks.Participants[i] = d.identifier()
		}
	}
	ks.GroupCommitment = d.commitment()
	if err := d.finish(); err != nil {
		return nil, err
	}

	if err := checkIdentifierSet(ks.Participants); err != nil {
		return nil, decodingError("invalid participant list").WithCause(err)
	}
	member := false
	for _, id := range ks.Participants {
		if id == ks.Identifier {
			member = true
			break
		}
	}
	if !member {
		return nil, decodingError("key share holder %s is not in the participant list", ks.Identifier)
	}
	if ks.MinSigners > len(ks.Participants) {
		return nil, decodingError("min signers %d exceeds %d participants", ks.MinSigners, len(ks.Participants))
	}
	if ks.GroupCommitment.Len() != ks.MinSigners {
		return nil, decodingError("group commitment has %d coefficients, min signers is %d", ks.GroupCommitment.Len(), ks.MinSigners)
	}
	if !VerifyShare(curve, ks.Identifier, ks.SecretShare, ks.GroupCommitment) {
		return nil, decodingError("secret share does not match the group commitment")
	}
	ks.PublicKey = curve.BasePoint().Mul(ks.SecretShare)
	ks.GroupPublicKey = ks.GroupCommitment.ConstantTerm()
	return ks, nil
}

// Bytes encodes suite || min_signers || n || (id || PK_id)* || Y with the
// participants in ascending order.
func (p *PublicKeyPackage) Bytes() ([]byte, error) {
	cs, err := CiphersuiteByID(p.Ciphersuite)
	if err != nil {
		return nil, err
	}
	code, err := suiteCode(p.Ciphersuite)
	if err != nil {
		return nil, err
	}
	out := []byte{code}
	if out, err = putU16(out, p.MinSigners); err != nil {
		return nil, err
	}
	ids := p.Identifiers(cs.Curve())
	if out, err = putU16(out, len(ids)); err != nil {
		return nil, err
	}
	for _, id := range ids {
		out = append(out, id[:]...)
		out = append(out, p.ParticipantPublicKeys[id].Bytes()...)
	}
	return append(out, p.GroupPublicKey.Bytes()...), nil
}

// DecodePublicKeyPackage decodes a public key package.
func DecodePublicKeyPackage(data []byte) (*PublicKeyPackage, error) {
	if len(data) == 0 {
		return nil, decodingError("empty public key package")
	}
	cs, err := suiteFromCode(data[0])
	if err != nil {
		return nil, err
	}
	d := &decoder{curve: cs.Curve(), data: data[1:]}
	p := &PublicKeyPackage{Ciphersuite: cs.ID(), MinSigners: d.u16()}
	n := d.u16()
	p.ParticipantPublicKeys = make(map[Identifier]Point, n)
	for i := 0; i < n && d.err == nil; i++ {
		id := d.identifier()
		pk := d.element()
		if _, dup := p.ParticipantPublicKeys[id]; dup && d.err == nil {
			d.err = decodingError("duplicate participant %s", id)
		}
		p.ParticipantPublicKeys[id] = pk
	}
	p.GroupPublicKey = d.element()
	if err := d.finish(); err != nil {
		return nil, err
	}
	if p.MinSigners < 1 || p.MinSigners > n {
		return nil, decodingError("min signers %d out of range for %d participants", p.MinSigners, n)
	}
	return p, nil
}

// Bytes encodes id || D || E.
func (c *SigningCommitment) Bytes() []byte {
	return appendAll(c.Identifier[:], c.Hiding.Bytes(), c.Binding.Bytes())
}

// DecodeSigningCommitment decodes a signing round-1 commitment.
func DecodeSigningCommitment(cs Ciphersuite, data []byte) (*SigningCommitment, error) {
	d := &decoder{curve: cs.Curve(), data: data}
	c := &SigningCommitment{Identifier: d.identifier(), Hiding: d.element(), Binding: d.element()}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Bytes encodes suite || n || commitments || len(msg) || msg.
func (p *SigningPackage) Bytes() ([]byte, error) {
	code, err := suiteCode(p.Ciphersuite)
	if err != nil {
		return nil, err
	}
	out, err := putU16([]byte{code}, len(p.Commitments))
	if err != nil {
		return nil, err
	}
	for _, c := range p.Commitments {
		out = append(out, c.Bytes()...)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(len(p.Message)))
	return append(out, p.Message...), nil
}

// DecodeSigningPackage decodes a signing package. The commitments must be
// in ascending identifier order with no duplicates.
func DecodeSigningPackage(data []byte) (*SigningPackage, error) {
	if len(data) == 0 {
		return nil, decodingError("empty signing package")
	}
	cs, err := suiteFromCode(data[0])
	if err != nil {
		return nil, err
	}
	curve := cs.Curve()
	d := &decoder{curve: curve, data: data[1:]}
	n := d.u16()
	commitments := make([]*SigningCommitment, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		c := &SigningCommitment{Identifier: d.identifier(), Hiding: d.element(), Binding: d.element()}
		if len(commitments) > 0 && d.err == nil &&
			compareIdentifiers(curve, commitments[len(commitments)-1].Identifier, c.Identifier) >= 0 {
			d.err = decodingError("commitments are not in strictly ascending order")
		}
		commitments = append(commitments, c)
	}
	message := d.take(d.u32())
	if err := d.finish(); err != nil {
		return nil, err
	}
	return &SigningPackage{
		Ciphersuite: cs.ID(),
		Message:     append([]byte(nil), message...),
		Commitments: commitments,
	}, nil
}

// Bytes encodes id || z.
func (s *SignatureShare) Bytes() []byte {
	return appendAll(s.Identifier[:], s.Z.Bytes())
}

// DecodeSignatureShare decodes a signature share.
func DecodeSignatureShare(cs Ciphersuite, data []byte) (*SignatureShare, error) {
	d := &decoder{curve: cs.Curve(), data: data}
	s := &SignatureShare{Identifier: d.identifier(), Z: d.scalar()}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeSignature decodes R || S.
func DecodeSignature(cs Ciphersuite, data []byte) (*Signature, error) {
	curve := cs.Curve()
	if err := checkLength("signature", data, curve.PointSize()+curve.ScalarSize()); err != nil {
		return nil, err
	}
	d := &decoder{curve: curve, data: data}
	sig := &Signature{R: d.element(), S: d.scalar()}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return sig, nil
}
