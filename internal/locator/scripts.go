package locator

// Every script is a single-argument function; the argument is a JSON object.
// Elements returned by queryScript are stamped with a marker attribute so
// later calls can address them without holding remote object references.

const markerAttr = "data-gl-id"

const resolveFn = `const resolve = (h) => document.querySelector('[` + markerAttr + `="' + h + '"]');`

const queryScript = `(p) => {
	window.__glSeq = window.__glSeq || 0;
	const out = [];
	for (const el of document.querySelectorAll(p.selector)) {
		let id = el.getAttribute('` + markerAttr + `');
		if (!id) {
			id = String(++window.__glSeq);
			el.setAttribute('` + markerAttr + `', id);
		}
		const r = el.getBoundingClientRect();
		const cs = window.getComputedStyle(el);
		const displayed = (el.offsetParent !== null || cs.position === 'fixed') &&
			cs.display !== 'none' && cs.visibility !== 'hidden';
		const tag = el.tagName;
		const type = (el.getAttribute('type') || 'text').toLowerCase();
		const editable = el.isContentEditable || tag === 'TEXTAREA' || (tag === 'INPUT' && type === 'text');
		const label = el.getAttribute('placeholder') || el.getAttribute('aria-label') ||
			el.getAttribute('aria-placeholder') || '';
		out.push({handle: id, tag: tag, width: r.width, height: r.height,
			displayed: displayed, editable: editable, label: label});
	}
	return out;
}`

const scrollScript = `(p) => {
	window.scrollTo(0, p.bottom ? document.body.scrollHeight : 0);
	return true;
}`

const clickScript = `(p) => {
	` + resolveFn + `
	const el = resolve(p.handle);
	if (!el) throw new Error('element is no longer attached');
	el.scrollIntoView({block: 'center'});
	el.focus();
	el.click();
	return true;
}`

const fillScript = `(p) => {
	` + resolveFn + `
	const el = resolve(p.handle);
	if (!el) throw new Error('element is no longer attached');
	el.focus();
	if (el.tagName === 'DIV') {
		el.textContent = p.text;
		el.innerHTML = p.text;
	} else {
		el.value = p.text;
	}
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	el.dispatchEvent(new InputEvent('input', {bubbles: true, data: p.text, inputType: 'insertText'}));
	return true;
}`

const enterScript = `(p) => {
	` + resolveFn + `
	const el = resolve(p.handle);
	if (!el) throw new Error('element is no longer attached');
	for (const type of ['keydown', 'keypress', 'keyup']) {
		el.dispatchEvent(new KeyboardEvent(type, {
			key: 'Enter', code: 'Enter', keyCode: 13, which: 13, bubbles: true, cancelable: true
		}));
	}
	return true;
}`

const clickFirstScript = `(p) => {
	for (const el of document.querySelectorAll(p.selector)) {
		if (el.offsetParent !== null) {
			el.click();
			return true;
		}
	}
	return false;
}`

const fillFirstScript = `(p) => {
	for (const el of document.querySelectorAll(p.selector)) {
		if (el.offsetParent === null) continue;
		el.focus();
		if (el.isContentEditable) {
			el.textContent = p.text;
		} else {
			el.value = p.text;
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}
	return false;
}`

const firstTextScript = `(p) => {
	for (const el of document.querySelectorAll(p.selector)) {
		if (el.offsetParent === null) continue;
		const text = (el.textContent || '').trim();
		if (text) return text;
	}
	return '';
}`
